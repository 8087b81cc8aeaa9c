package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shizuka/internal/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// newTestConfig はテスト用の設定と静的ルートを作成する
//
//	base/
//	  public/index.html    <h1>Home</h1>
//	  public/about.html    <p>About</p>
//	  public/docs/index.html
//	  secret.txt
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	base := t.TempDir()
	files := map[string]string{
		"public/index.html":      "<h1>Home</h1>",
		"public/about.html":      "<p>About</p>",
		"public/docs/index.html": "<h1>Docs</h1>",
		"secret.txt":             "top secret",
	}
	for name, body := range files {
		path := filepath.Join(base, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0, // ランダムポートを使用
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 2 * time.Second,
			H2C:             true,
		},
		Static: config.StaticConfig{
			Root:      filepath.Join(base, "public"),
			IndexFile: "index.html",
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("サーバーの作成に失敗しました: %v", err)
	}
	return srv
}

// serveInBackground はリスナーをバインドしてバックグラウンドで処理を開始する
func serveInBackground(t *testing.T, srv *Server) string {
	t.Helper()

	if err := srv.Listen(); err != nil {
		t.Fatalf("リッスンに失敗しました: %v", err)
	}
	go func() {
		_ = srv.Serve()
	}()
	t.Cleanup(func() {
		_ = srv.Shutdown()
	})

	return "http://" + srv.Addr().String()
}

// TestServerStartAndShutdown はサーバーの起動とシャットダウンをテストする
func TestServerStartAndShutdown(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	// テスト用のコンテキスト（タイムアウト付き）
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// サーバーを別ゴルーチンで起動
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// サーバーが起動するまで待つ
	var addr net.Addr
	deadline := time.Now().Add(2 * time.Second)
	for addr == nil && time.Now().Before(deadline) {
		addr = srv.Addr()
		time.Sleep(10 * time.Millisecond)
	}
	if addr == nil {
		t.Fatal("サーバーが起動しませんでした")
	}

	resp, err := http.Get("http://" + addr.String() + "/")
	if err != nil {
		t.Fatalf("HTTPリクエストでエラーが発生しました: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("予期しないステータスコード: got %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// コンテキストをキャンセルしてサーバーを停止
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("サーバーの起動/停止でエラーが発生しました: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("サーバーの停止がタイムアウトしました")
	}

	// 停止後は新しい接続を受け付けない
	if conn, err := net.DialTimeout("tcp", addr.String(), 500*time.Millisecond); err == nil {
		conn.Close()
		t.Error("停止後に接続できてしまいました")
	}
}

// TestServerEndpoints は実際のリスナー経由でエンドポイントをテストする
func TestServerEndpoints(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))
	baseURL := serveInBackground(t, srv)

	testCases := []struct {
		name           string
		endpoint       string
		expectedStatus int
		expectedBody   string
	}{
		{"ルートエンドポイント", "/", http.StatusOK, "<h1>Home</h1>"},
		{"デフォルトドキュメント", "/index.html", http.StatusOK, "<h1>Home</h1>"},
		{"ファイル", "/about.html", http.StatusOK, "<p>About</p>"},
		{"存在しないファイル", "/missing.html", http.StatusNotFound, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(baseURL + tc.endpoint)
			if err != nil {
				t.Fatalf("HTTPリクエストでエラーが発生しました: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.expectedStatus {
				t.Errorf("予期しないステータスコード: got %d, want %d",
					resp.StatusCode, tc.expectedStatus)
			}
			if tc.expectedBody == "" {
				return
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatal(err)
			}
			if string(body) != tc.expectedBody {
				t.Errorf("予期しないレスポンスボディ: got %q, want %q", body, tc.expectedBody)
			}
		})
	}
}

// TestServerBindError は同じアドレスへの2重バインドをテストする
func TestServerBindError(t *testing.T) {
	cfg := newTestConfig(t)
	first := newTestServer(t, cfg)
	baseURL := serveInBackground(t, first)

	// 1台目と同じポートで2台目を作成
	secondCfg := *cfg
	secondCfg.Server.Port = first.Addr().(*net.TCPAddr).Port
	second := newTestServer(t, &secondCfg)

	err := second.Listen()
	var bindErr *BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("BindError が期待されました: %v", err)
	}
	if bindErr.Addr != secondCfg.ServerAddress() {
		t.Errorf("BindError のアドレスが一致しません: got %s, want %s", bindErr.Addr, secondCfg.ServerAddress())
	}

	// Start も同じエラーを即座に返す
	if err := second.Start(context.Background()); !errors.As(err, &bindErr) {
		t.Errorf("Start で BindError が期待されました: %v", err)
	}

	// 1台目は影響を受けない
	resp, err := http.Get(baseURL + "/about.html")
	if err != nil {
		t.Fatalf("1台目へのリクエストに失敗しました: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("1台目のステータスコード: got %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

// TestServerShutdownIdempotent は Listen 前や2回目の Shutdown が安全であることをテストする
func TestServerShutdownIdempotent(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	if err := srv.Shutdown(); err != nil {
		t.Fatalf("Listen 前の Shutdown でエラー: %v", err)
	}
	if srv.Addr() != nil {
		t.Error("Listen 前にアドレスが返されました")
	}
	if err := srv.Serve(); !errors.Is(err, errNotListening) {
		t.Errorf("Listen 前の Serve でエラーが期待されました: %v", err)
	}

	if err := srv.Listen(); err != nil {
		t.Fatalf("リッスンに失敗しました: %v", err)
	}
	addr := srv.Addr().String()

	// Serve 前でもリスナーは閉じられる
	if err := srv.Shutdown(); err != nil {
		t.Fatalf("Shutdown でエラー: %v", err)
	}
	if err := srv.Shutdown(); err != nil {
		t.Fatalf("2回目の Shutdown でエラー: %v", err)
	}
	if conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond); err == nil {
		conn.Close()
		t.Error("停止後に接続できてしまいました")
	}
	if err := srv.Listen(); err == nil {
		t.Error("停止済みサーバーの再リッスンでエラーが期待されました")
	}
}

// TestServerInFlightRequest はシャットダウン中も処理中のリクエストが完了することをテストする
func TestServerInFlightRequest(t *testing.T) {
	cfg := newTestConfig(t)

	// 大きめのファイルを用意する
	large := make([]byte, 8<<20)
	for i := range large {
		large[i] = byte(i)
	}
	if err := os.WriteFile(filepath.Join(cfg.Static.Root, "large.bin"), large, 0o644); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t, cfg)
	baseURL := serveInBackground(t, srv)

	resp, err := http.Get(baseURL + "/large.bin")
	if err != nil {
		t.Fatalf("HTTPリクエストでエラーが発生しました: %v", err)
	}
	defer resp.Body.Close()

	// ヘッダー受信後にシャットダウンを開始
	done := make(chan error, 1)
	go func() {
		done <- srv.Shutdown()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("レスポンスの読み込みに失敗しました: %v", err)
	}
	if len(body) != len(large) {
		t.Errorf("レスポンスサイズが一致しません: got %d, want %d", len(body), len(large))
	}

	if err := <-done; err != nil {
		t.Errorf("シャットダウンでエラーが発生しました: %v", err)
	}
}

// TestServerH2C は平文のHTTP/2での配信をテストする
func TestServerH2C(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))
	baseURL := serveInBackground(t, srv)

	client := &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(baseURL + "/about.html")
	if err != nil {
		t.Fatalf("HTTP/2リクエストでエラーが発生しました: %v", err)
	}
	defer resp.Body.Close()

	if resp.ProtoMajor != 2 {
		t.Errorf("HTTP/2で応答されていません: %s", resp.Proto)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "<p>About</p>" {
		t.Errorf("予期しないレスポンスボディ: %q", body)
	}
}

// TestServerConcurrentRequests は異なるファイルへの同時リクエストをテストする
func TestServerConcurrentRequests(t *testing.T) {
	cfg := newTestConfig(t)

	want := make(map[string]string)
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("file%02d.txt", i)
		body := fmt.Sprintf("body of %s %0*d", name, 1000+i, i)
		if err := os.WriteFile(filepath.Join(cfg.Static.Root, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		want["/"+name] = body
	}

	srv := newTestServer(t, cfg)
	baseURL := serveInBackground(t, srv)

	errCh := make(chan error, len(want)*5)
	for round := 0; round < 5; round++ {
		for urlPath, body := range want {
			go func(urlPath, body string) {
				resp, err := http.Get(baseURL + urlPath)
				if err != nil {
					errCh <- err
					return
				}
				defer resp.Body.Close()

				got, err := io.ReadAll(resp.Body)
				if err != nil {
					errCh <- err
					return
				}
				if resp.StatusCode != http.StatusOK || string(got) != body {
					errCh <- fmt.Errorf("%s: status %d, 内容が一致しません", urlPath, resp.StatusCode)
					return
				}
				errCh <- nil
			}(urlPath, body)
		}
	}

	for i := 0; i < cap(errCh); i++ {
		if err := <-errCh; err != nil {
			t.Error(err)
		}
	}
}
