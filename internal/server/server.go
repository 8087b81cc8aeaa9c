package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"shizuka/internal/config"
	"shizuka/internal/static"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var errNotListening = errors.New("リスナーがバインドされていません")

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	root       *static.Root
	engine     *gin.Engine
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
}

// New は新しいServerインスタンスを作成する
// リスナーのバインドは行わない。Listen または Start を呼ぶこと
func New(cfg *config.Config) (*Server, error) {
	root, err := static.New(cfg.Static.Root, static.Options{
		IndexFile:     cfg.Static.IndexFile,
		ServeDotfiles: cfg.Static.ServeDotfiles,
	})
	if err != nil {
		return nil, fmt.Errorf("静的ルートの初期化に失敗: %w", err)
	}

	s := &Server{
		config: cfg,
		root:   root,
		engine: newEngine(NewStaticHandler(root, cfg.Static.MaxAge)),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Server.H2C {
		h2s := &http2.Server{}
		// シャットダウン時にHTTP/2接続へGOAWAYを送るため登録しておく
		if err := http2.ConfigureServer(s.httpServer, h2s); err != nil {
			return nil, fmt.Errorf("HTTP/2の設定に失敗: %w", err)
		}
		s.httpServer.Handler = h2c.NewHandler(s.engine, h2s)
	}

	return s, nil
}

// newEngine はルーティングを設定したginエンジンを作成する
func newEngine(h *StaticHandler) *gin.Engine {
	engine := gin.New()

	// パスの補正は静的ルート側で行うため、ginのリダイレクトは無効化
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.HandleMethodNotAllowed = false

	engine.Use(requestID(), recovery())

	// デフォルトドキュメント
	engine.GET("/", h.ServeIndex)
	engine.HEAD("/", h.ServeIndex)

	// それ以外は全て静的ファイル
	engine.NoRoute(h.ServeStatic)

	return engine
}

// Handler はリクエストを処理するハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Listen はリスナーをバインドする
// 失敗した場合は *BindError を返す
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("既にリッスンしています: %s", s.listener.Addr())
	}
	if s.stopped {
		return errors.New("停止済みのサーバーは再起動できません")
	}

	addr := s.config.ServerAddress()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &BindError{Addr: addr, Err: err}
	}
	s.listener = ln

	if _, err := os.Stat(s.root.Dir()); err != nil {
		log.Printf("静的ルートにアクセスできません。全てのリクエストが失敗します: %v", err)
	}
	log.Printf("サーバーが起動しました: http://%s (静的ルート: %s)", ln.Addr(), s.root.Dir())

	return nil
}

// Addr はバインドされたアドレスを返す
// Listen 前は nil を返す
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve はバインド済みのリスナーでリクエストの処理を行う
// Shutdown されるまで戻らない。Shutdown による終了では nil を返す
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	if ln == nil {
		return errNotListening
	}

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("サーバーの実行に失敗: %w", err)
	}
	return nil
}

// Start はサーバーを起動する
// コンテキストのキャンセル、SIGINT/SIGTERM の受信、または実行エラーまでブロックする
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	// サーバーを別ゴルーチンで起動
	serveCh := make(chan error, 1)
	go func() {
		serveCh <- s.Serve()
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-serveCh:
		if err != nil {
			_ = s.Shutdown()
		}
		return err
	}

	// グレースフルシャットダウン
	err := s.Shutdown()
	<-serveCh
	return err
}

// Shutdown はサーバーを停止する
// 新しい接続の受け付けを止め、処理中のリクエストは ShutdownTimeout まで完了を待つ
// Listen 前や2回目以降の呼び出しでは何もしない
func (s *Server) Shutdown() error {
	s.mu.Lock()
	ln := s.listener
	if ln == nil || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	log.Println("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)

	// Serve 前に呼ばれた場合、リスナーはhttp.Serverに登録されていない
	if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
		err = cerr
	}

	if err != nil {
		// タイムアウトした場合は残りの接続を強制的に閉じる
		_ = s.httpServer.Close()
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}
