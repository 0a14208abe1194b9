// Package worker provides a fixed-size goroutine pool fed by an unbounded
// FIFO job queue.
//
// The Pool starts its workers when it is constructed. Every worker shares
// one Receiver of the queue and competes for the next job; each job is
// delivered to exactly one worker, in submission order. Completion order
// across workers is not defined.
//
// # Basic Usage
//
//	pool := worker.New(4) // panics if size <= 0
//	defer pool.Close()
//
//	for _, conn := range conns {
//	    if err := pool.Execute(func() { handle(conn) }); err != nil {
//	        // worker.ErrPoolClosed: teardown already started
//	    }
//	}
//
// # Shutdown
//
// Close is the only shutdown signal. It closes the queue, then joins
// every worker in construction order. Jobs already queued still run; a job
// in flight finishes before its worker exits. Execute after Close returns
// ErrPoolClosed and the job never runs.
//
// # Faults
//
// A job that panics is recovered at the worker boundary, logged, and
// recorded as a *FaultError. That worker then exits and is not replaced,
// so the pool loses one slot of capacity. Close returns every such fault
// joined with errors.Join.
package worker
