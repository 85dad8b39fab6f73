// Package debugsrv is an optional loopback HTTP sidecar for operators —
// it never touches the MCP stdio transport, only reads runtime state for
// /healthz and /debug/state. Disabled unless a debug address is configured.
package debugsrv

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/navigator/internal/runtime"
)

// Server wraps a gin engine bound to a loopback address.
type Server struct {
	addr   string
	engine *gin.Engine
	http   *http.Server
}

// New builds a debug server for rt, or nil if addr is empty.
func New(addr string, rt *runtime.Runtime) *Server {
	if addr == "" {
		return nil
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.GET("/debug/state", func(c *gin.Context) {
		pages := rt.Pages.ListPages()
		items := make([]gin.H, 0, len(pages))
		for _, p := range pages {
			items = append(items, gin.H{
				"pageId": p.PageID, "url": p.URL, "title": p.Title, "closed": p.Closed,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"activePage":    rt.Pages.ActivePage(),
			"pages":         items,
			"captureProfile": rt.Capture.Active(),
			"generation":    rt.Pages.Generation(),
		})
	})

	return &Server{
		addr:   addr,
		engine: engine,
		http:   &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 5 * time.Second},
	}
}

// Start runs the sidecar's ListenAndServe loop on its own goroutine and
// returns immediately; the caller observes failures via errCh.
func (s *Server) Start(errCh chan<- error) {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
}

// Addr reports the bound address, for logging.
func (s *Server) Addr() string {
	return s.addr
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
