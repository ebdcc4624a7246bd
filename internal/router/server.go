package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shoplist/internal/httpmw"
	"shoplist/internal/wire"
)

// Server exposes the router's client channel, worker heartbeat channel,
// and a cluster introspection endpoint as a single gin engine.
type Server struct {
	router *Router
	engine *gin.Engine
}

// NewServer wires gin routes over router.
func NewServer(router *Router) *Server {
	engine := gin.New()
	engine.Use(httpmw.Logger("router"), httpmw.Recovery())

	engine.POST("/client/request", func(c *gin.Context) {
		var req wire.ClientRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, wire.Error(wire.ReasonRejected, err.Error()))
			return
		}
		c.JSON(http.StatusOK, router.HandleClientRequest(c.Request.Context(), req))
	})

	engine.POST("/internal/heartbeat", func(c *gin.Context) {
		var hb wire.Heartbeat
		if err := c.ShouldBindJSON(&hb); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error"})
			return
		}
		c.JSON(http.StatusOK, router.HandleHeartbeat(hb.WorkerAddress))
	})

	engine.GET("/cluster/nodes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"nodes": router.Nodes()})
	})

	return &Server{router: router, engine: engine}
}

// ListenAndServe blocks serving on addr until ctx is done or the server
// errors, giving in-flight requests 5s to complete on shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
