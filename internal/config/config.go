package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// デフォルト値
const (
	DefaultHost      = "0.0.0.0"
	DefaultPort      = 3000
	DefaultRoot      = "public"
	DefaultIndexFile = "index.html"
)

// Config はアプリケーション全体の設定を保持する構造体
// Load の後は変更しない
type Config struct {
	Server ServerConfig
	Static StaticConfig
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `validate:"required"`        // リッスンするホスト
	Port int    `validate:"min=1,max=65535"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `validate:"gte=0"` // 読み込みタイムアウト
	WriteTimeout    time.Duration `validate:"gte=0"` // 書き込みタイムアウト (0 は無制限)
	ShutdownTimeout time.Duration `validate:"gte=0"` // シャットダウン時に処理中リクエストを待つ時間

	// H2C が true の場合、平文のHTTP/2 (prior knowledge) も受け付ける
	H2C bool
}

// StaticConfig は静的ファイル配信の設定
type StaticConfig struct {
	Root      string `validate:"required"`                 // 静的ルート (絶対パス)
	IndexFile string `validate:"required,excludesall=/\\"` // デフォルトドキュメント名

	MaxAge        time.Duration `validate:"gte=0"` // Cache-Control の max-age
	ServeDotfiles bool          // "." で始まるファイルを配信するか
}

var validate = validator.New()

// Default はデフォルト設定を返す
// Static.Root は相対パスのままなので、Load を通さない場合は呼び出し側で絶対パスにすること
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0,
			ShutdownTimeout: 5 * time.Second,
			H2C:             true,
		},
		Static: StaticConfig{
			Root:      DefaultRoot,
			IndexFile: DefaultIndexFile,
		},
	}
}

// Load は設定を読み込む
// 優先順位: デフォルト値 < CONFIG_FILE で指定されたファイル < 環境変数
func Load() (*Config, error) {
	cfg := Default()

	// 設定ファイル
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	// 環境変数で上書き
	cfg.applyEnv()

	// 静的ルートを絶対パスに変換
	root, err := filepath.Abs(cfg.Static.Root)
	if err != nil {
		return nil, fmt.Errorf("静的ルートの絶対パス化に失敗: %w", err)
	}
	cfg.Static.Root = root

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv は .env ファイルを環境変数に読み込む
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf(".env ファイルの読み込みに失敗 (%s): %w", path, err)
		}
	}

	return nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if !filepath.IsAbs(c.Static.Root) {
		return fmt.Errorf("静的ルートは絶対パスである必要があります: %s", c.Static.Root)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnv は環境変数の値で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsPortOrDefault("PORT", c.Server.Port)
	c.Static.Root = getEnvOrDefault("STATIC_ROOT", c.Static.Root)
	c.Static.IndexFile = getEnvOrDefault("INDEX_FILE", c.Static.IndexFile)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsPortOrDefault は環境変数をポート番号として取得する
// 整数として解釈できない、または範囲外の場合はデフォルト値を返す
func getEnvAsPortOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		log.Printf("環境変数 %s の値が不正なためデフォルト値 %d を使用します: %q", key, defaultValue, value)
		return defaultValue
	}
	return port
}
