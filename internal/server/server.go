package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"payments-engine/internal/config"
	"payments-engine/internal/handler"
	"payments-engine/internal/repository"
	"payments-engine/internal/service"

	"github.com/gorilla/mux"
)

// Server represents the HTTP server
type Server struct {
	router *mux.Router
	server *http.Server
	db     *sql.DB
	logger *slog.Logger
	port   string
}

// NewServer creates a new server over an empty ledger. A database connection is
// opened only when snapshot export is configured.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var (
		db        *sql.DB
		snapshots *repository.SQLStore
	)
	if cfg.SnapshotsEnabled() {
		var err error
		db, err = repository.OpenPostgres(context.Background(), cfg.GetDBConnectionString())
		if err != nil {
			return nil, err
		}
		logger.Info("Successfully connected to database")
		snapshots = repository.NewSQLStore(db, logger)
	}

	store := repository.NewStore(logger)

	// Initialize services
	transactionService := service.NewTransactionService(store, logger)
	accountService := service.NewAccountService(store, snapshots, logger)

	// Initialize handlers
	transactionHandler := handler.NewTransactionHandler(transactionService, logger)
	accountHandler := handler.NewAccountHandler(accountService)

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	// Transaction routes
	router.HandleFunc("/transactions", transactionHandler.ProcessEntry).Methods("POST")
	router.HandleFunc("/transactions/batch", transactionHandler.ProcessBatch).Methods("POST")

	// Account routes
	router.HandleFunc("/accounts", accountHandler.ListAccounts).Methods("GET")
	router.HandleFunc("/accounts/{client_id}", accountHandler.GetAccount).Methods("GET")

	// Snapshot routes
	router.HandleFunc("/snapshots", accountHandler.ExportSnapshot).Methods("POST")
	router.HandleFunc("/snapshots/{run_id}", accountHandler.GetSnapshot).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	return &Server{
		router: router,
		db:     db,
		logger: logger,
	}, nil
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration", time.Since(start),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed", "error", err)
		}
	}()

	return s.port, nil
}

// Stop gracefully shuts down the server, then closes the database
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	if s.db != nil {
		s.db.Close()
	}
	return err
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// StartServer builds and starts the server with the given configuration
func StartServer(cfg *config.Config) (*Server, string, error) {
	var logger *slog.Logger
	if cfg.ServerPort == "0" {
		// Test environment - use discard logger
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		return nil, "", err
	}

	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		server.Stop(context.Background())
		return nil, "", err
	}

	return server, port, nil
}
