// Package server exposes the interpreter over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rxtech-lab/algoscript/internal/executor"
	"github.com/rxtech-lab/algoscript/internal/interpreter"
	"github.com/rxtech-lab/algoscript/internal/journal"
	"github.com/rxtech-lab/algoscript/internal/logger"
	"github.com/rxtech-lab/algoscript/internal/marketdata"
	"github.com/rxtech-lab/algoscript/pkg/errors"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Server routes API requests to an Interpreter.
type Server struct {
	interpreter    *interpreter.Interpreter
	markets        *marketSet
	journal        *journal.Journal
	logger         *logger.Logger
	metrics        *Metrics
	registry       *prometheus.Registry
	router         *mux.Router
	initialBalance float64
	defaultEvents  []string
}

type options struct {
	feeds          interpreter.FeedFactory
	history        int
	journal        *journal.Journal
	logger         *logger.Logger
	initialBalance float64
	defaultEvents  []string
}

type Option func(*options)

// WithFeedFactory sets the feed used by the market data endpoints.
func WithFeedFactory(factory interpreter.FeedFactory) Option {
	return func(o *options) {
		if factory != nil {
			o.feeds = factory
		}
	}
}

func WithHistory(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.history = n
		}
	}
}

// WithJournal records every multi-event run in j.
func WithJournal(j *journal.Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithInitialBalance sets the balance used when a request omits one.
func WithInitialBalance(balance float64) Option {
	return func(o *options) {
		if balance > 0 {
			o.initialBalance = balance
		}
	}
}

// WithDefaultEvents sets the events simulated when a request omits them.
func WithDefaultEvents(events []string) Option {
	return func(o *options) {
		if len(events) > 0 {
			o.defaultEvents = events
		}
	}
}

// New creates a server around interp.
func New(interp *interpreter.Interpreter, opts ...Option) *Server {
	o := options{
		feeds:          interpreter.SyntheticFeeds,
		history:        marketdata.DefaultHistory,
		journal:        nil,
		logger:         logger.NewNopLogger(),
		initialBalance: executor.DefaultInitialBalance,
		defaultEvents:  []string{"NEW_CANDLE"},
	}

	for _, opt := range opts {
		opt(&o)
	}

	registry := prometheus.NewRegistry()

	s := &Server{
		interpreter:    interp,
		markets:        newMarketSet(o.feeds, o.history, o.logger),
		journal:        o.journal,
		logger:         o.logger,
		metrics:        NewMetrics(registry),
		registry:       registry,
		router:         mux.NewRouter(),
		initialBalance: o.initialBalance,
		defaultEvents:  o.defaultEvents,
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	api.HandleFunc("/algoscript/validate", s.handleValidate).Methods(http.MethodPost)
	api.HandleFunc("/algoscript/execute", s.handleExecute).Methods(http.MethodPost)
	api.HandleFunc("/algoscript/execute-multi", s.handleExecuteMulti).Methods(http.MethodPost)
	api.HandleFunc("/algoscript/example", s.handleExample).Methods(http.MethodGet)
	api.HandleFunc("/algoscript/market-data/{symbol}", s.handleMarketData).Methods(http.MethodGet)
	api.HandleFunc("/algoscript/market-data/{symbol}/simulate-candle", s.handleSimulateCandle).Methods(http.MethodPost)
	api.HandleFunc("/algoscript/runs/{run_id}", s.handleRun).Methods(http.MethodGet)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.cors(s.router)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readHeaderTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(errors.ErrCodeServerFailed, "server stopped", err)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(errors.ErrCodeServerFailed, "failed to shut down server", err)
	}

	return nil
}

// cors allows any origin, matching the browser editor's needs.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)

			return
		}

		next.ServeHTTP(w, r)
	})
}
