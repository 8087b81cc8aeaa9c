// Package main は開発用のサーバーコマンドの実装です
// 環境変数や設定ファイルの値をコマンドラインオプションで上書きできます
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"shizuka/internal/config"
	"shizuka/internal/server"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
)

func main() {
	// コマンドラインオプション
	var (
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 3000)")
		root       = flag.String("root", "", "静的ルートのディレクトリ (デフォルト: ./public)")
		configFile = flag.String("config", "", "設定ファイル (.yaml / .toml)")
		envFile    = flag.String("env", ".env", "読み込む .env ファイル")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		color.New(color.Bold).Println("Shizuka")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("環境変数ファイルの読み込みに失敗しました: %v", err)
	}
	if *configFile != "" {
		if err := os.Setenv("CONFIG_FILE", *configFile); err != nil {
			log.Fatalf("設定ファイルの指定に失敗しました: %v", err)
		}
	}

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *root != "" {
		abs, err := filepath.Abs(*root)
		if err != nil {
			log.Fatalf("静的ルートの解決に失敗しました: %v", err)
		}
		cfg.Static.Root = abs
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定の検証に失敗しました: %v", err)
	}

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("サーバーの作成に失敗しました: %v", err)
	}

	color.Cyan("Shizuka サーバーを起動します: http://%s", cfg.ServerAddress())
	color.Cyan("静的ルート: %s", cfg.Static.Root)

	if err := srv.Start(context.Background()); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
