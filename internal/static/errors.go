package static

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound は要求されたファイルが静的ルート内に存在しないことを表す
	ErrNotFound = errors.New("ファイルが見つかりません")

	// ErrForbiddenPath は要求パスが静的ルートの外を指していることを表す
	ErrForbiddenPath = errors.New("静的ルート外へのアクセスは禁止されています")
)

// IOError はファイルの読み込み中に発生したエラー
// 権限不足やI/O障害など、リクエスト単位で 500 として扱うもの
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("ファイルの読み込みに失敗 (%s): %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
