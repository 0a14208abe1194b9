package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"static-web-server/internal/events"
	"static-web-server/internal/logger"
	"static-web-server/internal/metrics"
	"static-web-server/internal/worker"
)

const component = "admin"

// Config は管理サーバーの設定
type Config struct {
	Addr              string        // リッスンアドレス
	BroadcastInterval time.Duration // WebSocketへのステータス配信間隔
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Addr:              "127.0.0.1:9090",
		BroadcastInterval: time.Second,
	}
}

// PoolInspector はワーカープールの状態を読み出す
type PoolInspector interface {
	Stats() worker.Stats
	Workers() []worker.WorkerInfo
}

// Server は管理用APIサーバー
type Server struct {
	config   Config
	pool     PoolInspector
	metrics  *metrics.Metrics
	bus      *events.Bus
	gatherer prometheus.Gatherer
	started  time.Time

	mu        sync.RWMutex
	wsClients map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しい管理サーバーを作成する。m, bus, gatherer は nil でもよい
func NewServer(config Config, pool PoolInspector, m *metrics.Metrics, bus *events.Bus, gatherer prometheus.Gatherer) *Server {
	if config.BroadcastInterval <= 0 {
		config.BroadcastInterval = time.Second
	}
	return &Server{
		config:    config,
		pool:      pool,
		metrics:   m,
		bus:       bus,
		gatherer:  gatherer,
		started:   time.Now(),
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/workers", s.handleWorkers)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return r
}

// Start はサーバーを開始し、ctx がキャンセルされるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var feed <-chan events.Event
	if s.bus != nil {
		feed = s.bus.Subscribe()
		defer s.bus.Unsubscribe(feed)
	}
	go s.broadcastLoop(ctx, feed)

	logger.Info(component, "Admin server starting on http://%s", s.config.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.closeClients()
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Pool     worker.Stats      `json:"pool"`
	Requests *metrics.Snapshot `json:"requests,omitempty"`
	Uptime   string            `json:"uptime"`
	// DroppedEvents counts bus deliveries skipped because a subscriber was full.
	DroppedEvents uint64 `json:"dropped_events"`
}

func (s *Server) status() StatusResponse {
	resp := StatusResponse{
		Pool:   s.pool.Stats(),
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.metrics != nil {
		snap := s.metrics.Snapshot()
		resp.Requests = &snap
	}
	if s.bus != nil {
		resp.DroppedEvents = s.bus.Dropped()
	}
	return resp
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats := s.pool.Stats()
	if stats.State != worker.StateRunning.String() || stats.Live == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": stats.State})
		return
	}
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.status())
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.pool.Workers())
}

// Frame はWebSocketで送るメッセージ
type Frame struct {
	Type   string          `json:"type"`
	Status *StatusResponse `json:"status,omitempty"`
	Event  *events.Event   `json:"event,omitempty"`
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) closeClients() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ws := range s.wsClients {
		_ = ws.Close()
	}
}

func (s *Server) broadcast(frame Frame) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(data))
	}
}

// broadcastLoop はプールイベントを即時に、ステータスを定期的に配信する。
// ステータス配信ごとにメトリクスのウィンドウを切り替える
func (s *Server) broadcastLoop(ctx context.Context, feed <-chan events.Event) {
	ticker := time.NewTicker(s.config.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-feed:
			if !ok {
				// Bus closed; keep the status ticker going.
				feed = nil
				continue
			}
			s.broadcast(Frame{Type: "event", Event: &ev})
		case <-ticker.C:
			status := s.status()
			if s.metrics != nil {
				s.metrics.Reset()
			}
			s.broadcast(Frame{Type: "status", Status: &status})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error(component, "Failed to encode JSON: %v", err)
	}
}
