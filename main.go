package main

import (
	"context"
	"log"
	"os"

	"shizuka/internal/config"
	"shizuka/internal/server"

	"github.com/gin-gonic/gin"
)

func main() {
	// .env があれば環境変数として読み込む
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("環境変数ファイルの読み込みに失敗しました: %v", err)
	}

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// GIN_MODE が未指定ならリリースモード
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// サーバーを作成
	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("サーバーの作成に失敗しました: %v", err)
	}

	// サーバーを起動
	if err := srv.Start(context.Background()); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
