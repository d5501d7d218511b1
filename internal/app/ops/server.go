// Package ops serves the local operational endpoints used while watching:
// Prometheus metrics and a health probe.
package ops

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/flexcrow/escrowctl/internal/app/metrics"
	"github.com/flexcrow/escrowctl/internal/app/system"
	"github.com/flexcrow/escrowctl/internal/httputil"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/internal/middleware"
)

var _ system.Service = (*Server)(nil)

// Probe reports whether a component is healthy. A nil error is healthy.
type Probe func(ctx context.Context) error

// Server is a lifecycle-managed HTTP listener.
type Server struct {
	addr    string
	probes  map[string]Probe
	log     *logging.Logger
	router  *mux.Router
	limiter *middleware.RateLimiter

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	errCh    chan error
	done     chan struct{}
}

// New builds the router. Requests are traced, counted and limited to rps
// per client.
func New(addr string, rps float64, log *logging.Logger) *Server {
	if log == nil {
		log = logging.New("ops", "info", "text")
	}
	if rps <= 0 {
		rps = 20
	}
	s := &Server{addr: addr, probes: map[string]Probe{}, log: log}

	limiter := middleware.NewRateLimiter(rps, int(rps)*2, log)
	r := mux.NewRouter()
	r.Use(middleware.Tracing(log), middleware.Metrics("ops"), limiter.Handler)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	s.router = r
	s.limiter = limiter
	return s
}

// AddProbe registers a named health check.
func (s *Server) AddProbe(name string, p Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes[name] = p
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Addr is the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Name() string { return "ops-server" }

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.errCh = make(chan error, 1)
	go func(srv *http.Server, errCh chan<- error) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}(s.srv, s.errCh)

	s.done = make(chan struct{})
	go s.prune(s.done)

	s.log.WithContext(ctx).WithField("addr", ln.Addr().String()).Info("ops server listening")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, errCh, done := s.srv, s.errCh, s.done
	s.srv, s.done = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	close(done)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err, ok := <-errCh; ok && err != nil {
		return err
	}
	return nil
}

// prune drops idle per-client limiters until done is closed.
func (s *Server) prune(done <-chan struct{}) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			s.limiter.Cleanup()
		}
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	probes := make(map[string]Probe, len(s.probes))
	for k, v := range s.probes {
		probes[k] = v
	}
	s.mu.Unlock()

	status := http.StatusOK
	checks := make(map[string]string, len(probes))
	for name, probe := range probes {
		if err := probe(r.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	httputil.WriteJSON(w, status, map[string]interface{}{"status": state, "checks": checks})
}
