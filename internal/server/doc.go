// Package server accepts TCP connections and hands each one to a worker
// pool as a single job.
//
// The accept loop runs on the caller's goroutine; request handling runs on
// the pool's workers via static.Handler. Cancelling the context passed to
// Start or Serve closes the listener and makes the loop return. The pool
// is not owned by the server: its owner closes it once Serve has returned.
//
//	pool := worker.New(4)
//	defer pool.Close()
//
//	srv := server.New(server.DefaultConfig(), pool, metrics.New())
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
