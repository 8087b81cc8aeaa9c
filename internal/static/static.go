// Package static は静的ルート配下のファイル解決を担う
//
// # 責務
// - URLパスを静的ルート配下のファイルパスへ変換する
// - ディレクトリトラバーサル（".." やルート外へのシンボリックリンク）の拒否
// - ファイルのオープンと Content-Type / ETag の決定
//
// # 仕様
// - パスの検証はファイルシステムへのアクセスより前に行う
// - 実際のオープンは os.Root 経由で行い、ルート外に出ないことを保証する
// - "." で始まるセグメントを含むパスは、許可されていない限り存在しないものとして扱う
// - ディレクトリが要求された場合はその中のデフォルトドキュメントを返す（一覧は返さない）
// - HTTPには依存しない。ステータスコードへの変換は server パッケージが行う
package static

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
)

// DefaultIndexFile はデフォルトドキュメントのファイル名
const DefaultIndexFile = "index.html"

// Options は Root の動作設定
type Options struct {
	IndexFile     string // ディレクトリ要求時に返すファイル名
	ServeDotfiles bool   // "." で始まるファイルを配信するか
}

// Root は静的ルートを表す
// 生成後は不変で、複数のゴルーチンから同時に使用できる
type Root struct {
	dir           string
	indexFile     string
	serveDotfiles bool
}

// New は新しい Root を作成する
// dir は絶対パスである必要がある。ディレクトリの存在は確認しない
func New(dir string, opts Options) (*Root, error) {
	if !filepath.IsAbs(dir) {
		return nil, fmt.Errorf("静的ルートは絶対パスである必要があります: %s", dir)
	}

	index := opts.IndexFile
	if index == "" {
		index = DefaultIndexFile
	}
	if strings.ContainsAny(index, `/\`) {
		return nil, fmt.Errorf("デフォルトドキュメント名にパス区切り文字は使用できません: %s", index)
	}

	return &Root{
		dir:           filepath.Clean(dir),
		indexFile:     index,
		serveDotfiles: opts.ServeDotfiles,
	}, nil
}

// Dir は静的ルートのディレクトリを返す
func (r *Root) Dir() string {
	return r.dir
}

// IndexFile はデフォルトドキュメントのファイル名を返す
func (r *Root) IndexFile() string {
	return r.indexFile
}

// IndexPath はルートパス "/" に対応するURLパスを返す
func (r *Root) IndexPath() string {
	return "/" + r.indexFile
}

// Resolve はURLパスを静的ルート配下のファイルパスに変換する
// ファイルシステムにはアクセスせず、字句的な検証のみを行う
func (r *Root) Resolve(urlPath string) (string, error) {
	rel, err := r.relative(urlPath)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return r.dir, nil
	}
	return filepath.Join(r.dir, rel), nil
}

// relative はURLパスを検証し、静的ルートからの相対パスを返す
func (r *Root) relative(urlPath string) (string, error) {
	if strings.IndexByte(urlPath, 0) >= 0 {
		return "", ErrForbiddenPath
	}

	// Windows では "\" も区切り文字として扱われるため、両方で分割して検査する
	segments := strings.FieldsFunc(urlPath, func(c rune) bool {
		return c == '/' || c == filepath.Separator
	})
	for _, seg := range segments {
		if seg == ".." {
			return "", ErrForbiddenPath
		}
		if !r.serveDotfiles && seg != "." && strings.HasPrefix(seg, ".") {
			return "", ErrNotFound
		}
	}

	cleaned := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if cleaned == "" {
		return ".", nil
	}

	rel := filepath.FromSlash(cleaned)
	if !filepath.IsLocal(rel) {
		return "", ErrForbiddenPath
	}
	return rel, nil
}

// Open はURLパスに対応するファイルを開く
// 返された Asset は呼び出し側で Close すること
func (r *Root) Open(urlPath string) (*Asset, error) {
	rel, err := r.relative(urlPath)
	if err != nil {
		return nil, err
	}

	realRoot, err := filepath.EvalSymlinks(r.dir)
	if err != nil {
		return nil, classify(r.dir, err)
	}
	root, err := os.OpenRoot(realRoot)
	if err != nil {
		return nil, classify(r.dir, err)
	}
	defer root.Close()

	asset, err := r.open(root, realRoot, rel)
	if err != nil {
		return nil, err
	}
	if !asset.Info.IsDir() {
		// "/about.html/" のような末尾スラッシュ付きのファイル要求は存在しない扱い
		if strings.HasSuffix(urlPath, "/") {
			_ = asset.Close()
			return nil, ErrNotFound
		}
		return asset, nil
	}

	// ディレクトリの場合はデフォルトドキュメントを探す
	_ = asset.Close()

	asset, err = r.open(root, realRoot, filepath.Join(rel, r.indexFile))
	if err != nil {
		return nil, err
	}
	if asset.Info.IsDir() {
		_ = asset.Close()
		return nil, ErrNotFound
	}
	asset.FromDirectory = true

	return asset, nil
}

// open はシンボリックリンクを解決し、実体が静的ルート内にある場合のみ開く
// os.Root は絶対パスのシンボリックリンクを辿らないため、解決済みのパスで開く
func (r *Root) open(root *os.Root, realRoot, rel string) (*Asset, error) {
	name := filepath.Join(r.dir, rel)

	realTarget, err := filepath.EvalSymlinks(filepath.Join(realRoot, rel))
	if err != nil {
		return nil, classify(name, err)
	}
	if !within(realRoot, realTarget) {
		return nil, ErrForbiddenPath
	}

	resolved, err := filepath.Rel(realRoot, realTarget)
	if err != nil {
		return nil, ErrForbiddenPath
	}
	return openAsset(root, resolved, name)
}

// within は target が root と同じか、その配下にあるかを返す
func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}

// classify はファイルシステムのエラーを static パッケージのエラーに変換する
func classify(name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR), errors.Is(err, syscall.ENAMETOOLONG):
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	default:
		return &IOError{Path: name, Err: err}
	}
}
