package static

import (
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Asset は配信対象として開かれたファイル
// io.ReadSeekCloser を実装し、http.ServeContent にそのまま渡せる
type Asset struct {
	Name          string      // ファイル名（ベース名）
	Path          string      // ファイルシステム上の絶対パス
	Info          fs.FileInfo // ファイル情報
	ContentType   string      // 推定した Content-Type
	FromDirectory bool        // ディレクトリ要求に対するデフォルトドキュメントか

	file *os.File
}

var _ io.ReadSeekCloser = (*Asset)(nil)

// openAsset は os.Root 経由でファイルを開き Asset を作成する
// Content-Type は要求されたパス fullPath の拡張子から決める
func openAsset(root *os.Root, rel, fullPath string) (*Asset, error) {
	f, err := root.Open(rel)
	if err != nil {
		return nil, classify(fullPath, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, classify(fullPath, err)
	}

	asset := &Asset{
		Name: filepath.Base(fullPath),
		Path: fullPath,
		Info: info,
		file: f,
	}
	if info.IsDir() {
		return asset, nil
	}

	ctype, err := detectContentType(f, asset.Name)
	if err != nil {
		_ = f.Close()
		return nil, &IOError{Path: fullPath, Err: err}
	}
	asset.ContentType = ctype

	return asset, nil
}

// detectContentType は拡張子から Content-Type を決定する
// 拡張子から判定できない場合は内容から推定し、読み込み位置を先頭に戻す
func detectContentType(f *os.File, name string) (string, error) {
	if ctype := mime.TypeByExtension(filepath.Ext(name)); ctype != "" {
		return ctype, nil
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("content-type の推定に失敗: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}

// Read はファイルの内容を読み込む
func (a *Asset) Read(p []byte) (int, error) {
	return a.file.Read(p)
}

// Seek は読み込み位置を変更する
func (a *Asset) Seek(offset int64, whence int) (int64, error) {
	return a.file.Seek(offset, whence)
}

// Close はファイルを閉じる
func (a *Asset) Close() error {
	return a.file.Close()
}

// Size はファイルサイズを返す
func (a *Asset) Size() int64 {
	return a.Info.Size()
}

// ModTime は最終更新時刻を返す
func (a *Asset) ModTime() time.Time {
	return a.Info.ModTime()
}

// ETag はサイズと更新時刻から弱いETagを生成する
func (a *Asset) ETag() string {
	return fmt.Sprintf(`W/"%x-%x"`, a.Size(), a.ModTime().UnixMilli())
}
