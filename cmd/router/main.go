// cmd/router is the control-plane entry point: one process owning the
// hash ring, the placement planner, and the worker registry behind a
// single gin engine that serves both the client channel and the worker
// heartbeat channel.
//
// Example:
//
//	./router --addr :9000 --workers localhost:9001,localhost:9002
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shoplist/internal/router"
)

func main() {
	addr := flag.String("addr", ":9000", "listen address for the client and heartbeat channel")
	workersFlag := flag.String("workers", "", "comma-separated seed worker addresses to warm-start from")
	workerTimeout := flag.Duration("worker-timeout", 10*time.Second, "time since last heartbeat before a worker is evicted")
	sweepInterval := flag.Duration("sweep-interval", 5*time.Second, "how often to check for evicted workers")
	flag.Parse()

	rt := router.New(*workerTimeout)
	srv := router.NewServer(rt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rt.Run(ctx)
	go rt.SweepLoop(ctx, *sweepInterval)

	if *workersFlag != "" {
		seeds := strings.Split(*workersFlag, ",")
		rt.WarmStart(ctx, seeds)
		log.Printf("warm-started from %d seed workers", len(seeds))
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("router listening on %s", *addr)
		errCh <- srv.ListenAndServe(ctx, *addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("router server error: %v", err)
		}
	case <-quit:
		log.Println("shutting down router")
		cancel()
		<-errCh
	}
}
