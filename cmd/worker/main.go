// cmd/worker runs one storage node: its durable store, the worker state
// machine, and a heartbeat sender that keeps the router's registry alive.
//
// Example:
//
//	./worker --addr localhost:9101 --router localhost:9000 --data-dir /var/shoplist/w1
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shoplist/internal/worker"
	"shoplist/internal/workerstore"
)

func main() {
	addr := flag.String("addr", "localhost:9101", "this worker's control-channel address, as advertised to the router")
	routerAddr := flag.String("router", "localhost:9000", "router's client/heartbeat address")
	dataDir := flag.String("data-dir", "/tmp/shoplist", "directory for this worker's sqlite store")
	heartbeatInterval := flag.Duration("heartbeat-interval", 5*time.Second, "how often to heartbeat the router")
	flag.Parse()

	dbPath := fmt.Sprintf("%s.db", *addr)
	if *dataDir != "" {
		if err := os.MkdirAll(*dataDir, 0o755); err != nil {
			log.Fatalf("create data dir: %v", err)
		}
		dbPath = fmt.Sprintf("%s/%s.db", *dataDir, sanitizeAddr(*addr))
	}

	store, err := workerstore.Open(dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	node := worker.New(*addr, store)
	srv := worker.NewServer(node)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.HeartbeatSender(ctx, *routerAddr, *addr, *heartbeatInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("worker %s listening (replication channel on port+1000)", *addr)
		errCh <- srv.ListenAndServe(ctx, *addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("worker server error: %v", err)
		}
	case <-quit:
		log.Println("shutting down worker", *addr)
		cancel()
		<-errCh
	}
}

func sanitizeAddr(addr string) string {
	out := make([]byte, len(addr))
	for i := 0; i < len(addr); i++ {
		c := addr[i]
		if c == ':' || c == '/' {
			c = '_'
		}
		out[i] = c
	}
	return string(out)
}
