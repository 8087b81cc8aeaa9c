package server

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shizuka/internal/static"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "requestID"
	allowedMethods  = "GET, HEAD"
)

// StaticHandler は静的ルート配下のファイルを配信する
type StaticHandler struct {
	root   *static.Root
	maxAge time.Duration
}

// NewStaticHandler は新しいStaticHandlerを作成する
func NewStaticHandler(root *static.Root, maxAge time.Duration) *StaticHandler {
	return &StaticHandler{
		root:   root,
		maxAge: maxAge,
	}
}

// ServeIndex は "/" に対してデフォルトドキュメントを返す
// デフォルトドキュメントがディレクトリの場合は存在しないものとして扱う
func (h *StaticHandler) ServeIndex(c *gin.Context) {
	asset, err := h.root.Open(h.root.IndexPath())
	if err != nil {
		respondError(c, err)
		return
	}
	defer asset.Close()

	if asset.FromDirectory {
		respondError(c, static.ErrNotFound)
		return
	}

	h.serve(c, asset)
}

// ServeStatic はリクエストパスに対応するファイルを返す
// ルーティングに一致しなかった全リクエストがここに来る
func (h *StaticHandler) ServeStatic(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead:
	default:
		c.Header("Allow", allowedMethods)
		respondError(c, ErrMethodNotAllowed)
		return
	}

	urlPath := c.Request.URL.Path
	asset, err := h.root.Open(urlPath)
	if err != nil {
		respondError(c, err)
		return
	}
	defer asset.Close()

	// 末尾スラッシュのないディレクトリ要求はリダイレクト
	if asset.FromDirectory && !strings.HasSuffix(urlPath, "/") {
		redirectToDirectory(c)
		return
	}

	h.serve(c, asset)
}

// serve は開いたファイルをレスポンスに書き込む
func (h *StaticHandler) serve(c *gin.Context, asset *static.Asset) {
	// レスポンスヘッダーを設定
	c.Header("Content-Type", asset.ContentType)
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int64(h.maxAge/time.Second)))
	c.Header("ETag", asset.ETag())

	// Content-Length, Last-Modified, 条件付きリクエスト, Range はServeContentに任せる
	http.ServeContent(c.Writer, c.Request, asset.Name, asset.ModTime(), asset)
}

// redirectToDirectory は末尾にスラッシュを付けたパスへリダイレクトする
func redirectToDirectory(c *gin.Context) {
	// 先頭の連続スラッシュは "//host" と解釈されるため1つにまとめる
	location := url.URL{
		Path:     "/" + strings.TrimLeft(c.Request.URL.Path, "/") + "/",
		RawQuery: c.Request.URL.RawQuery,
	}
	c.Redirect(http.StatusMovedPermanently, location.String())
}

// respondError はエラーをHTTPレスポンスに変換して返す
func respondError(c *gin.Context, err error) {
	status, response := statusForError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[%s] %s %s の処理に失敗: %v", c.GetString(requestIDKey), c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, response)
}

// requestID はリクエストIDを付与するミドルウェア
// クライアントから渡された値があればそれを使う
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// recovery はハンドラ内のpanicを回復して 500 を返すミドルウェア
func recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(log.Writer(), func(c *gin.Context, recovered any) {
		respondError(c, fmt.Errorf("panic: %v", recovered))
	})
}
