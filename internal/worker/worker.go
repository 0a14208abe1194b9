package worker

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"static-web-server/internal/events"
	"static-web-server/internal/logger"
)

// Job はワーカーが実行するジョブを表す
type Job func()

// FaultError は実行中のジョブがpanicしてワーカーが終了したことを表す
type FaultError struct {
	WorkerID int
	Value    any
	Stack    []byte
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("worker %d: job panicked: %v", e.WorkerID, e.Value)
}

// Worker はジョブキューから取り出したジョブを実行する単一のゴルーチン
type Worker struct {
	id       int
	receiver *Receiver
	bus      *events.Bus

	busy     atomic.Bool
	executed atomic.Uint64

	// fault is written before done is closed and read only after.
	fault error
	done  chan struct{}
}

// newWorker はワーカーを作成し、受信ループのゴルーチンを起動する
func newWorker(id int, receiver *Receiver, bus *events.Bus) *Worker {
	w := &Worker{
		id:       id,
		receiver: receiver,
		bus:      bus,
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// ID はワーカーIDを返す
func (w *Worker) ID() int {
	return w.id
}

func (w *Worker) name() string {
	return fmt.Sprintf("worker-%d", w.id)
}

// run は受信ループ。キューが閉じられて空になるか、ジョブがpanicすると終了する
func (w *Worker) run() {
	defer close(w.done)

	w.bus.Publish(events.NewWorkerStartedEvent(w.id))

	for {
		job, err := w.receiver.Receive()
		if err != nil {
			logger.Info(w.name(), "disconnected; shutting down")
			w.bus.Publish(events.NewWorkerStoppedEvent(w.id, w.executed.Load()))
			return
		}

		logger.Debug(w.name(), "got a job; executing")

		if fault := w.execute(job); fault != nil {
			logger.Error(w.name(), "%v; worker exiting\n%s", fault, fault.Stack)
			w.fault = fault
			w.bus.Publish(events.NewWorkerFaultEvent(w.id, fault))
			return
		}
	}
}

// execute はジョブを同期的に実行し、panicをFaultErrorに変換する
func (w *Worker) execute(job Job) (fault *FaultError) {
	w.busy.Store(true)
	defer func() {
		w.busy.Store(false)
		if r := recover(); r != nil {
			fault = &FaultError{WorkerID: w.id, Value: r, Stack: debug.Stack()}
		}
	}()

	job()
	w.executed.Add(1)
	return nil
}

// join はゴルーチンの終了を待ち、異常終了していればその原因を返す
func (w *Worker) join() error {
	<-w.done
	return w.fault
}

// Alive はゴルーチンがまだ終了していないかを返す
func (w *Worker) Alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Busy はジョブを実行中かを返す
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Executed は正常終了したジョブ数を返す
func (w *Worker) Executed() uint64 {
	return w.executed.Load()
}
