package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxLatencySamples = 1000

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int // P99計算に保持するレイテンシサンプル数
}

// Metrics は処理したコネクションのメトリクスを収集する
type Metrics struct {
	totalRequests  atomic.Uint64
	successResp    atomic.Uint64 // 2xx
	clientErrors   atomic.Uint64 // 4xx
	serverErrors   atomic.Uint64 // 5xx
	writeFailures  atomic.Uint64
	rejected       atomic.Uint64
	bytesSent      atomic.Uint64
	totalLatencyNs atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	lastResetTime     time.Time
	windowRequests    uint64
	latencies         []time.Duration
	nextSample        int
	maxLatencySamples int
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(Config{MaxLatencySamples: defaultMaxLatencySamples})
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	samples := config.MaxLatencySamples
	if samples <= 0 {
		samples = defaultMaxLatencySamples
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		lastResetTime:     now,
		latencies:         make([]time.Duration, 0, samples),
		maxLatencySamples: samples,
	}
}

// Record は一件のレスポンスを記録する。err は書き込み失敗を表す
func (m *Metrics) Record(status int, bytes int64, latency time.Duration, err error) {
	m.totalRequests.Add(1)
	switch {
	case status >= 500:
		m.serverErrors.Add(1)
	case status >= 400:
		m.clientErrors.Add(1)
	case status >= 200 && status < 300:
		m.successResp.Add(1)
	}
	if err != nil {
		m.writeFailures.Add(1)
	}
	if bytes > 0 {
		m.bytesSent.Add(uint64(bytes))
	}
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowRequests++
	// Ring buffer: once full, the oldest sample is overwritten.
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	} else {
		m.latencies[m.nextSample] = latency
		m.nextSample = (m.nextSample + 1) % m.maxLatencySamples
	}
	m.mu.Unlock()
}

// RecordRejected はプールに投入できなかったコネクションを記録する
func (m *Metrics) RecordRejected() {
	m.rejected.Add(1)
}

// TotalRequests は総リクエスト数を返す
func (m *Metrics) TotalRequests() uint64 {
	return m.totalRequests.Load()
}

// SuccessResponses は2xxレスポンス数を返す
func (m *Metrics) SuccessResponses() uint64 {
	return m.successResp.Load()
}

// ClientErrors は4xxレスポンス数を返す
func (m *Metrics) ClientErrors() uint64 {
	return m.clientErrors.Load()
}

// ServerErrors は5xxレスポンス数を返す
func (m *Metrics) ServerErrors() uint64 {
	return m.serverErrors.Load()
}

// WriteFailures はレスポンス書き込みに失敗した数を返す
func (m *Metrics) WriteFailures() uint64 {
	return m.writeFailures.Load()
}

// Rejected は拒否されたコネクション数を返す
func (m *Metrics) Rejected() uint64 {
	return m.rejected.Load()
}

// BytesSent は送信したバイト数を返す
func (m *Metrics) BytesSent() uint64 {
	return m.bytesSent.Load()
}

// RPS は直近ウィンドウのRequests Per Secondを返す
func (m *Metrics) RPS() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.lastResetTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.windowRequests) / elapsed
}

// OverallRPS は開始からの平均RPSを返す
func (m *Metrics) OverallRPS() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.totalRequests.Load()) / elapsed
}

// AverageLatency は平均レイテンシを返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.totalRequests.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatencyNs.Load() / total)
}

// P99Latency はP99レイテンシを返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	sorted := slices.Clone(m.latencies)
	m.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ErrorRate は5xxと書き込み失敗の割合を返す（0.0〜1.0）
func (m *Metrics) ErrorRate() float64 {
	total := m.totalRequests.Load()
	if total == 0 {
		return 0
	}
	return float64(m.serverErrors.Load()+m.writeFailures.Load()) / float64(total)
}

// Reset はウィンドウメトリクス（RPS、レイテンシサンプル）をリセットする。
// 管理サーバーがステータス配信ごとに呼ぶ
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowRequests = 0
	m.lastResetTime = time.Now()
	m.latencies = m.latencies[:0]
	m.nextSample = 0
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	TotalRequests  uint64        `json:"total_requests"`
	Success        uint64        `json:"success"`
	ClientErrors   uint64        `json:"client_errors"`
	ServerErrors   uint64        `json:"server_errors"`
	WriteFailures  uint64        `json:"write_failures"`
	Rejected       uint64        `json:"rejected"`
	BytesSent      uint64        `json:"bytes_sent"`
	RPS            float64       `json:"rps"`
	OverallRPS     float64       `json:"overall_rps"`
	AverageLatency time.Duration `json:"average_latency_ns"`
	P99Latency     time.Duration `json:"p99_latency_ns"`
	ErrorRate      float64       `json:"error_rate"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:  m.TotalRequests(),
		Success:        m.SuccessResponses(),
		ClientErrors:   m.ClientErrors(),
		ServerErrors:   m.ServerErrors(),
		WriteFailures:  m.WriteFailures(),
		Rejected:       m.Rejected(),
		BytesSent:      m.BytesSent(),
		RPS:            m.RPS(),
		OverallRPS:     m.OverallRPS(),
		AverageLatency: m.AverageLatency(),
		P99Latency:     m.P99Latency(),
		ErrorRate:      m.ErrorRate(),
		Elapsed:        time.Since(m.startTime),
	}
}
