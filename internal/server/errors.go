package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"shizuka/internal/static"
)

// ErrMethodNotAllowed は GET/HEAD 以外のメソッドで要求されたことを表す
var ErrMethodNotAllowed = errors.New("許可されていないメソッドです")

// BindError はリスナーのバインドに失敗したことを表す
// 起動時のみ発生し、プロセスは終了すべきエラー
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("アドレス %s のバインドに失敗: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// ErrorResponse はエラー時のレスポンスボディ
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// statusForError はリクエスト処理中のエラーをHTTPステータスとエラーレスポンスに変換する
func statusForError(err error) (int, ErrorResponse) {
	response := ErrorResponse{Timestamp: time.Now()}

	var status int
	switch {
	case errors.Is(err, static.ErrForbiddenPath):
		status = http.StatusBadRequest
		response.Error = "forbidden_path"
		response.Message = "不正なパスが指定されました"
	case errors.Is(err, static.ErrNotFound):
		status = http.StatusNotFound
		response.Error = "not_found"
		response.Message = "指定されたファイルが見つかりません"
	case errors.Is(err, ErrMethodNotAllowed):
		status = http.StatusMethodNotAllowed
		response.Error = "method_not_allowed"
		response.Message = "許可されていないメソッドです"
		response.Details = stringPtr("GET または HEAD を使用してください")
	default:
		status = http.StatusInternalServerError
		response.Error = "internal_error"
		response.Message = "ファイルの読み込みに失敗しました"
	}

	return status, response
}

// stringPtr は文字列のポインタを返すヘルパー関数
func stringPtr(s string) *string {
	return &s
}
