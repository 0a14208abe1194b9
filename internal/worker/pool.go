package worker

import (
	"errors"
	"fmt"
	"sync"

	"static-web-server/internal/events"
	"static-web-server/internal/logger"
)

var (
	// ErrPoolClosed is returned by Execute once teardown has begun.
	ErrPoolClosed = errors.New("worker: execute on closed pool")
	// ErrNilJob is returned by Execute for a nil job.
	ErrNilJob = errors.New("worker: nil job")
)

const poolComponent = "pool"

// State はプールのライフサイクル状態
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	NumWorkers int         // ワーカー数（1以上）
	EventBus   *events.Bus // ライフサイクルイベントの発行先（nil可）
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers: 4,
	}
}

// Pool は固定数のワーカーと共有ジョブキューを管理する
type Pool struct {
	workers  []*Worker
	sender   *Sender
	receiver *Receiver
	bus      *events.Bus

	mu    sync.RWMutex
	state State

	closeOnce sync.Once
	closeErr  error
}

// New は size 個のワーカーを持つプールを作成する。
// size が正でなければ panic する。
func New(size int) *Pool {
	config := DefaultPoolConfig()
	config.NumWorkers = size
	return NewPoolWithConfig(config)
}

// NewPoolWithConfig は設定を指定してワーカープールを作成する
func NewPoolWithConfig(config PoolConfig) *Pool {
	if config.NumWorkers <= 0 {
		panic(fmt.Sprintf("worker: pool size must be positive, got %d", config.NumWorkers))
	}

	sender, receiver := NewQueue()
	p := &Pool{
		workers:  make([]*Worker, 0, config.NumWorkers),
		sender:   sender,
		receiver: receiver,
		bus:      config.EventBus,
		state:    StateCreated,
	}

	for id := range config.NumWorkers {
		p.workers = append(p.workers, newWorker(id, receiver, p.bus))
	}

	p.state = StateRunning
	logger.Info(poolComponent, "WorkerPool started with %d workers", config.NumWorkers)
	return p
}

// Execute はジョブをキューに追加して即座に戻る。完了は待たない。
func (p *Pool) Execute(job Job) error {
	if job == nil {
		return ErrNilJob
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state != StateRunning {
		return ErrPoolClosed
	}
	if err := p.sender.Send(job); err != nil {
		return ErrPoolClosed
	}
	return nil
}

// Close はキューを閉じ、全ワーカーを生成順に join する。
// 実行中のジョブは完了まで待つ。二回目以降の呼び出しは最初の結果を返す。
func (p *Pool) Close() error {
	p.closeOnce.Do(p.shutdown)
	return p.closeErr
}

// shutdown はティアダウン本体。closeOnce から一度だけ呼ばれる
func (p *Pool) shutdown() {
	p.mu.Lock()
	p.state = StateShuttingDown
	pending := p.receiver.Len()
	p.sender.Close()
	p.mu.Unlock()

	p.bus.Publish(events.NewPoolClosingEvent(pending))
	logger.Info(poolComponent, "shutting down %d workers (%d jobs pending)", len(p.workers), pending)

	var errs []error
	for _, w := range p.workers {
		logger.Info(poolComponent, "Shutting down worker %d", w.id)
		if err := w.join(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closeErr = errors.Join(errs...)

	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()

	executed := p.executed()
	p.bus.Publish(events.NewPoolStoppedEvent(executed, p.closeErr))
	if p.closeErr != nil {
		logger.Error(poolComponent, "WorkerPool stopped with %d faulted workers", len(errs))
	} else {
		logger.Info(poolComponent, "WorkerPool stopped (%d jobs executed)", executed)
	}
}

// State は現在の状態を返す
func (p *Pool) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Size はワーカー数を返す
func (p *Pool) Size() int {
	return len(p.workers)
}

// LiveWorkers は終了していないワーカー数を返す
func (p *Pool) LiveWorkers() int {
	n := 0
	for _, w := range p.workers {
		if w.Alive() {
			n++
		}
	}
	return n
}

// QueueLen は実行待ちのジョブ数を返す
func (p *Pool) QueueLen() int {
	return p.receiver.Len()
}

func (p *Pool) executed() uint64 {
	var total uint64
	for _, w := range p.workers {
		total += w.Executed()
	}
	return total
}
