// Package main is the entry point for static-web-server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"static-web-server/internal/api"
	"static-web-server/internal/config"
	"static-web-server/internal/events"
	"static-web-server/internal/logger"
	"static-web-server/internal/metrics"
	"static-web-server/internal/server"
	"static-web-server/internal/worker"
)

var (
	version = "dev"
)

// options はコマンドラインフラグ
type options struct {
	configFile string
	addr       string
	root       string
	workers    int
	admin      bool
	adminAddr  string
	logLevel   string
	version    bool

	// 明示的に指定されたフラグ名
	set map[string]bool
}

func main() {
	opts := parseFlags(os.Args[1:])

	if opts.version {
		fmt.Printf("static-web-server version %s\n", version)
		return
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Error("", "サーバーエラー: %v", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) options {
	fs := flag.NewFlagSet("static-web-server", flag.ExitOnError)

	var opts options
	fs.StringVar(&opts.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	fs.StringVar(&opts.addr, "addr", "", "ファイルサーバーのアドレス (例: 127.0.0.1:7878)")
	fs.StringVar(&opts.root, "root", "", "配信ディレクトリ")
	fs.IntVar(&opts.workers, "workers", 0, "ワーカー数")
	fs.BoolVar(&opts.admin, "admin", false, "管理サーバーを有効化")
	fs.StringVar(&opts.adminAddr, "admin-addr", "", "管理サーバーのアドレス (例: 127.0.0.1:9090)")
	fs.StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	fs.BoolVar(&opts.version, "version", false, "バージョンを表示")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `static-web-server - Static file server backed by a fixed-size worker pool

Usage:
  static-web-server [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # ./static を 4 ワーカーで配信
  static-web-server

  # 設定ファイルから起動
  static-web-server --config server.yaml

  # 管理サーバー付きで起動
  static-web-server --root ./public --workers 8 --admin
`)
	}

	_ = fs.Parse(args)

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts
}

// buildConfig はファイル、環境変数、フラグの順に設定を重ねる
func buildConfig(opts options) (*config.FileConfig, error) {
	cfg := config.Default()

	// 1. 設定ファイルから読み込み
	if opts.configFile != "" {
		fileConfig, err := config.LoadFile(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		cfg = fileConfig
	}

	// 2. 環境変数で上書き
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	// 3. 明示的に指定されたフラグで上書き
	if opts.set["addr"] {
		cfg.Server.Addr = opts.addr
	}
	if opts.set["root"] {
		cfg.Server.Root = opts.root
	}
	if opts.set["workers"] {
		cfg.Pool.Size = opts.workers
	}
	if opts.set["admin"] {
		cfg.Admin.Enabled = opts.admin
	}
	if opts.set["admin-addr"] {
		cfg.Admin.Addr = opts.adminAddr
	}
	if opts.set["log-level"] {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定検証エラー: %w", err)
	}
	return cfg, nil
}

// run はプールとサーバーを起動し、シグナルを受けるまでブロックする
func run(cfg *config.FileConfig) (err error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	// 標準出力は終了時のレポート用に空けておく
	logger.Default.SetOutput(os.Stderr)
	logger.Default.SetLevel(level)
	logger.Default.SetColor(cfg.Log.Color)

	serverConfig, err := cfg.ToServerConfig()
	if err != nil {
		return err
	}
	adminConfig, err := cfg.ToAdminConfig()
	if err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()

	m := metrics.New()
	pool := worker.NewPoolWithConfig(cfg.ToPoolConfig(bus))
	defer func() {
		closeErr := pool.Close()
		printReport(os.Stdout, pool.Workers(), m.Snapshot())
		if closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	srv := server.New(serverConfig, pool, m)
	g.Go(func() error {
		return srv.Start(gctx)
	})

	if cfg.Admin.Enabled {
		admin := api.NewServer(adminConfig, pool, m, bus, metrics.NewRegistry(m, pool))
		g.Go(func() error {
			return admin.Start(gctx)
		})
	}

	return g.Wait()
}
