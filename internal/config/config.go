package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"static-web-server/internal/api"
	"static-web-server/internal/events"
	"static-web-server/internal/logger"
	"static-web-server/internal/server"
	"static-web-server/internal/static"
	"static-web-server/internal/worker"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Pool   PoolConfig   `yaml:"pool" json:"pool"`
	Admin  AdminConfig  `yaml:"admin" json:"admin"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// ServerConfig はファイルサーバー設定
type ServerConfig struct {
	Addr         string  `yaml:"addr" json:"addr" env:"SWS_ADDR"`
	Root         string  `yaml:"root" json:"root" env:"SWS_ROOT"`
	IndexFile    string  `yaml:"index_file" json:"index_file" env:"SWS_INDEX_FILE"`
	NotFoundPage string  `yaml:"not_found_page" json:"not_found_page" env:"SWS_NOT_FOUND_PAGE"`
	ReadTimeout  string  `yaml:"read_timeout" json:"read_timeout" env:"SWS_READ_TIMEOUT"`
	WriteTimeout string  `yaml:"write_timeout" json:"write_timeout" env:"SWS_WRITE_TIMEOUT"`
	AcceptRate   float64 `yaml:"accept_rate" json:"accept_rate" env:"SWS_ACCEPT_RATE"`
	AcceptBurst  int     `yaml:"accept_burst" json:"accept_burst" env:"SWS_ACCEPT_BURST"`
}

// PoolConfig はワーカープール設定
type PoolConfig struct {
	Size int `yaml:"size" json:"size" env:"SWS_POOL_SIZE"`
}

// AdminConfig は管理サーバー設定
type AdminConfig struct {
	Enabled           bool   `yaml:"enabled" json:"enabled" env:"SWS_ADMIN_ENABLED"`
	Addr              string `yaml:"addr" json:"addr" env:"SWS_ADMIN_ADDR"`
	BroadcastInterval string `yaml:"broadcast_interval" json:"broadcast_interval" env:"SWS_ADMIN_BROADCAST_INTERVAL"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level" env:"SWS_LOG_LEVEL"`
	Color bool   `yaml:"color" json:"color" env:"SWS_LOG_COLOR"`
}

// Default はデフォルト設定を返す
func Default() *FileConfig {
	return &FileConfig{
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			Root:         "./static",
			IndexFile:    static.DefaultIndexFile,
			NotFoundPage: static.DefaultNotFoundPage,
			ReadTimeout:  "10s",
			WriteTimeout: "10s",
		},
		Pool: PoolConfig{Size: 4},
		Admin: AdminConfig{
			Addr:              "127.0.0.1:9090",
			BroadcastInterval: "1s",
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadFile は設定ファイルを読み込む。ファイルにない項目はデフォルト値のまま
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return config, nil
}

// ApplyEnv は SWS_* 環境変数で設定を上書きする
func (f *FileConfig) ApplyEnv() error {
	if err := env.Parse(f); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	var errs []error

	if f.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if f.Server.Root == "" {
		errs = append(errs, errors.New("server.root must not be empty"))
	}
	if f.Server.AcceptRate < 0 {
		errs = append(errs, errors.New("server.accept_rate must be non-negative"))
	}
	if f.Server.AcceptBurst < 0 {
		errs = append(errs, errors.New("server.accept_burst must be non-negative"))
	}
	if f.Pool.Size <= 0 {
		errs = append(errs, fmt.Errorf("pool.size must be positive, got %d", f.Pool.Size))
	}
	if f.Admin.Enabled && f.Admin.Addr == "" {
		errs = append(errs, errors.New("admin.addr must not be empty when admin is enabled"))
	}
	if _, err := parseDuration(f.Server.ReadTimeout); err != nil {
		errs = append(errs, fmt.Errorf("server.read_timeout: %w", err))
	}
	if _, err := parseDuration(f.Server.WriteTimeout); err != nil {
		errs = append(errs, fmt.Errorf("server.write_timeout: %w", err))
	}
	if _, err := parseDuration(f.Admin.BroadcastInterval); err != nil {
		errs = append(errs, fmt.Errorf("admin.broadcast_interval: %w", err))
	}
	if _, err := logger.ParseLevel(f.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// ToServerConfig はFileConfigをserver.Configに変換する
func (f *FileConfig) ToServerConfig() (server.Config, error) {
	sc := f.Server
	config := server.DefaultConfig()

	if sc.Addr != "" {
		config.Addr = sc.Addr
	}
	if sc.Root != "" {
		config.Static.Root = sc.Root
	}
	config.Static.IndexFile = sc.IndexFile
	config.Static.NotFoundPage = sc.NotFoundPage

	if sc.ReadTimeout != "" {
		d, err := parseDuration(sc.ReadTimeout)
		if err != nil {
			return config, fmt.Errorf("invalid read timeout: %w", err)
		}
		config.ReadTimeout = d
	}
	if sc.WriteTimeout != "" {
		d, err := parseDuration(sc.WriteTimeout)
		if err != nil {
			return config, fmt.Errorf("invalid write timeout: %w", err)
		}
		config.WriteTimeout = d
	}
	config.AcceptRate = sc.AcceptRate
	config.AcceptBurst = sc.AcceptBurst

	return config, nil
}

// ToPoolConfig はFileConfigをworker.PoolConfigに変換する
func (f *FileConfig) ToPoolConfig(bus *events.Bus) worker.PoolConfig {
	config := worker.DefaultPoolConfig()
	if f.Pool.Size > 0 {
		config.NumWorkers = f.Pool.Size
	}
	config.EventBus = bus
	return config
}

// ToAdminConfig はFileConfigをapi.Configに変換する
func (f *FileConfig) ToAdminConfig() (api.Config, error) {
	ac := f.Admin
	config := api.DefaultConfig()

	if ac.Addr != "" {
		config.Addr = ac.Addr
	}
	if ac.BroadcastInterval != "" {
		d, err := parseDuration(ac.BroadcastInterval)
		if err != nil {
			return config, fmt.Errorf("invalid broadcast interval: %w", err)
		}
		config.BroadcastInterval = d
	}

	return config, nil
}

// LogLevel は設定されたログレベルを返す
func (f *FileConfig) LogLevel() (logger.Level, error) {
	return logger.ParseLevel(f.Log.Level)
}

// parseDuration は空文字を0として扱う
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be non-negative: %s", s)
	}
	return d, nil
}
