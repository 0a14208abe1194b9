package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"static-web-server/internal/logger"
	"static-web-server/internal/metrics"
	"static-web-server/internal/static"
	"static-web-server/internal/worker"
)

const component = "server"

// Accept エラーが続く場合の待機時間の範囲
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Config はファイルサーバーの設定
type Config struct {
	Addr         string        // リッスンアドレス (例: 127.0.0.1:8080)
	Static       static.Config // 配信ディレクトリの設定
	ReadTimeout  time.Duration // リクエスト行の読み込みタイムアウト（0で無効）
	AcceptRate   float64       // 1秒あたりの受け付け上限（0で無制限）
	AcceptBurst  int           // AcceptRate のバースト
	WriteTimeout time.Duration // レスポンス書き込みタイムアウト（0で無効）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:8080",
		Static:       static.Config{Root: "./static"},
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Executor はジョブを受け付けるワーカープール
type Executor interface {
	Execute(job worker.Job) error
}

// Server は接続ごとにジョブをワーカープールへ投入するTCPサーバー
type Server struct {
	config  Config
	pool    Executor
	handler *static.Handler
	metrics *metrics.Metrics
	limiter *rate.Limiter

	mu       sync.Mutex
	listener net.Listener
}

// New は新しいサーバーを作成する。m は nil でもよい
func New(config Config, pool Executor, m *metrics.Metrics) *Server {
	s := &Server{
		config:  config,
		pool:    pool,
		handler: static.NewHandler(config.Static),
		metrics: m,
	}
	if config.AcceptRate > 0 {
		burst := config.AcceptBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.AcceptRate), burst)
	}
	return s
}

// Listen はアドレスにバインドする
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("could not bind to address %s: %w", s.config.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr はバインド済みのアドレスを返す。Listen 前は nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start はバインドして ctx がキャンセルされるまで接続を受け付ける
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve は受け付けループ。ctx がキャンセルされるとリスナーを閉じて nil を返す
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server: Serve called before Listen")
	}

	logger.Info(component, "serving %s on %s", s.handler.Root(), ln.Addr())

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	var backoff time.Duration
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				break
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			backoff = nextBackoff(backoff)
			logger.Warn(component, "failed to establish a connection: %v; retrying in %v", err, backoff)
			if !sleepCtx(ctx, backoff) {
				break
			}
			continue
		}
		backoff = 0

		s.dispatch(conn)
	}

	logger.Info(component, "Shutting down.")
	return nil
}

// nextBackoff は直前の待機時間を倍にする
func nextBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptBackoff
	}
	return min(2*prev, maxAcceptBackoff)
}

// sleepCtx は d だけ待つ。ctx が先に終われば false を返す
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// dispatch は接続をジョブに包んでプールへ投入する
func (s *Server) dispatch(conn net.Conn) {
	id := uuid.NewString()

	err := s.pool.Execute(func() {
		s.handle(id, conn)
	})
	if err != nil {
		logger.Error(id, "rejecting connection from %s: %v", conn.RemoteAddr(), err)
		if s.metrics != nil {
			s.metrics.RecordRejected()
		}
		_ = conn.Close()
	}
}

// handle はワーカー上で一つの接続を処理する
func (s *Server) handle(id string, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	start := time.Now()
	if s.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(start.Add(s.config.ReadTimeout))
	}
	if s.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(start.Add(s.config.WriteTimeout))
	}

	res := s.handler.ServeConn(conn)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.Record(res.Status, res.Bytes, elapsed, res.Err)
	}
	if res.Err != nil {
		logger.Warn(id, "failed to send response to %s: %v", conn.RemoteAddr(), res.Err)
		return
	}
	if logger.Default.Enabled(logger.LevelDebug) {
		logger.Debug(id, "%s %d (%d bytes, %v)", conn.RemoteAddr(), res.Status, res.Bytes, elapsed)
	}
}
