package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shoplist/internal/httpmw"
	"shoplist/internal/wire"
)

// sendReplication pushes req to targetAddr's replication channel, the
// worker-to-worker port bound alongside the control channel.
func (n *Node) sendReplication(ctx context.Context, targetAddr string, req wire.ClientRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/replicate/receive", replicationAddr(targetAddr))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("peer returned HTTP %d", resp.StatusCode)
	}
	var decoded wire.Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Status != "success" {
		return fmt.Errorf("replication rejected: %s", decoded.Message)
	}
	return nil
}

// replicationAddr derives the host:port+1000 replication channel address
// from a worker's control-channel address.
func replicationAddr(addr string) string {
	host, port := splitHostPort(addr)
	return fmt.Sprintf("%s:%d", host, port+1000)
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}

// Server exposes the worker's control/data channel and replication channel
// as two separate gin HTTP servers, one bound at addr and the other at
// addr's port+1000.
type Server struct {
	Node       *Node
	controlEng *gin.Engine
	replEng    *gin.Engine
}

// NewServer wires gin routers for both channels.
func NewServer(n *Node) *Server {
	control := gin.New()
	control.Use(httpmw.Logger("worker"), httpmw.Recovery())
	control.POST("/worker/request", func(c *gin.Context) {
		var req wire.ClientRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, wire.Error(wire.ReasonRejected, err.Error()))
			return
		}
		c.JSON(http.StatusOK, n.Handle(c.Request.Context(), req))
	})
	control.GET("/worker/keys", func(c *gin.Context) {
		keys, err := n.ListKeys(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, wire.Error(wire.ReasonInternal, err.Error()))
			return
		}
		c.JSON(http.StatusOK, wire.KeyList{Keys: keys})
	})

	repl := gin.New()
	repl.Use(httpmw.Logger("worker-repl"), httpmw.Recovery())
	repl.POST("/replicate/receive", func(c *gin.Context) {
		var req wire.ClientRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, wire.Error(wire.ReasonRejected, err.Error()))
			return
		}
		req.Action = "receive_replication"
		c.JSON(http.StatusOK, n.Handle(c.Request.Context(), req))
	})

	return &Server{Node: n, controlEng: control, replEng: repl}
}

// ListenAndServe runs the control channel on addr and the replication
// channel on addr's port+1000, blocking until either fails or ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	replAddr := replicationAddr(addr)

	controlSrv := &http.Server{Addr: addr, Handler: s.controlEng}
	replSrv := &http.Server{Addr: replAddr, Handler: s.replEng}

	errCh := make(chan error, 2)
	go func() { errCh <- controlSrv.ListenAndServe() }()
	go func() { errCh <- replSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		controlSrv.Shutdown(shutdownCtx)
		replSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// HeartbeatSender posts {worker_address} to the router every interval.
// A missing or errored ack is logged but never changes the interval —
// there is no backoff on the heartbeat channel.
func HeartbeatSender(ctx context.Context, routerAddr, workerAddr string, interval time.Duration) {
	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sendHeartbeat(ctx, client, routerAddr, workerAddr); err != nil {
				log.Printf("heartbeat to %s failed: %v", routerAddr, err)
			}
		}
	}
}

func sendHeartbeat(ctx context.Context, client *http.Client, routerAddr, workerAddr string) error {
	body, _ := json.Marshal(wire.Heartbeat{WorkerAddress: workerAddr})
	url := fmt.Sprintf("http://%s/internal/heartbeat", routerAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var ack wire.HeartbeatAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return err
	}
	if ack.Status != "ack" {
		return fmt.Errorf("invalid heartbeat response: %q", ack.Status)
	}
	return nil
}
