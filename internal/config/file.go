package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// fileConfig は設定ファイルの構造
// 未指定の項目は nil のままとし、デフォルト値を上書きしない
type fileConfig struct {
	Server struct {
		Host            *string `yaml:"host" toml:"host"`
		Port            *int    `yaml:"port" toml:"port"`
		ReadTimeout     *string `yaml:"read_timeout" toml:"read_timeout"`
		WriteTimeout    *string `yaml:"write_timeout" toml:"write_timeout"`
		ShutdownTimeout *string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
		H2C             *bool   `yaml:"h2c" toml:"h2c"`
	} `yaml:"server" toml:"server"`

	Static struct {
		Root          *string `yaml:"root" toml:"root"`
		IndexFile     *string `yaml:"index_file" toml:"index_file"`
		MaxAge        *string `yaml:"max_age" toml:"max_age"`
		ServeDotfiles *bool   `yaml:"serve_dotfiles" toml:"serve_dotfiles"`
	} `yaml:"static" toml:"static"`
}

// applyFile は設定ファイルの内容で設定を上書きする
// 拡張子で形式を判定する (.yaml / .yml / .toml)
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		return fmt.Errorf("未対応の設定ファイル形式です: %s", path)
	}
	if err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}

	return c.merge(&fc)
}

// merge は指定された項目のみを設定に反映する
func (c *Config) merge(fc *fileConfig) error {
	if fc.Server.Host != nil {
		c.Server.Host = *fc.Server.Host
	}
	if fc.Server.Port != nil {
		c.Server.Port = *fc.Server.Port
	}
	if fc.Server.H2C != nil {
		c.Server.H2C = *fc.Server.H2C
	}

	durations := []struct {
		name  string
		value *string
		dst   *time.Duration
	}{
		{"server.read_timeout", fc.Server.ReadTimeout, &c.Server.ReadTimeout},
		{"server.write_timeout", fc.Server.WriteTimeout, &c.Server.WriteTimeout},
		{"server.shutdown_timeout", fc.Server.ShutdownTimeout, &c.Server.ShutdownTimeout},
		{"static.max_age", fc.Static.MaxAge, &c.Static.MaxAge},
	}
	for _, d := range durations {
		if d.value == nil {
			continue
		}
		v, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("%s の値が不正です: %w", d.name, err)
		}
		*d.dst = v
	}

	if fc.Static.Root != nil {
		c.Static.Root = *fc.Static.Root
	}
	if fc.Static.IndexFile != nil {
		c.Static.IndexFile = *fc.Static.IndexFile
	}
	if fc.Static.ServeDotfiles != nil {
		c.Static.ServeDotfiles = *fc.Static.ServeDotfiles
	}

	return nil
}
