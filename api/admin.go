// Package api provides the operator-facing HTTP endpoints (health, metrics).
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nostrelay/util/goroutine"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Admin serves /healthz and /metrics on a loopback-by-default address,
// separate from the peer-facing relay port.
type Admin struct {
	host   string
	port   int
	server *http.Server
	logger *zap.SugaredLogger
	wg     sync.WaitGroup
}

// NewAdmin creates the admin server.
func NewAdmin(host string, port int, logger *zap.SugaredLogger) *Admin {
	return &Admin{host: host, port: port, logger: logger}
}

// Start starts serving in the background.
func (a *Admin) Start() error {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	addr := fmt.Sprintf("%s:%d", a.host, a.port)
	a.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}

	a.logger.Infof("Admin endpoint started on %s", addr)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer goroutine.Recover("admin-http-server", a.logger)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Errorf("Admin server error: %v", err)
		}
	}()
	return nil
}

func (a *Admin) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

// Stop shuts the server down gracefully.
func (a *Admin) Stop() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Errorw("Failed to shutdown admin server gracefully", "error", err)
		}
	}
	a.wg.Wait()
}
