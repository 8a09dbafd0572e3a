package transport

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
)

const (
	StreamablePath = "/mcp"
	SSEPath        = "/sse"
	MessagePath    = "/message"
	HealthPath     = "/health"

	shutdownTimeout = 5 * time.Second
)

// HTTPOptions configures the HTTP front ends.
type HTTPOptions struct {
	Addr string
	// BaseURL is the externally visible origin advertised to SSE clients.
	// Derived from Addr when empty.
	BaseURL string
	// Token, when set, is required as a bearer token on every MCP route.
	Token  string
	Logger *log.Logger
}

func (o HTTPOptions) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// NewStreamableHandler exposes s over streamable HTTP at /mcp.
func NewStreamableHandler(s *server.MCPServer, opts HTTPOptions) http.Handler {
	streamable := server.NewStreamableHTTPServer(s, server.WithEndpointPath(StreamablePath))
	return newRouter(opts, func(r chi.Router) {
		r.Handle(StreamablePath, streamable)
	})
}

// NewSSEHandler exposes s over the SSE transport: the event stream at /sse
// and client posts at /message.
func NewSSEHandler(s *server.MCPServer, opts HTTPOptions) http.Handler {
	sse := server.NewSSEServer(s,
		server.WithBaseURL(baseURL(opts)),
		server.WithSSEEndpoint(SSEPath),
		server.WithMessageEndpoint(MessagePath),
	)
	return newRouter(opts, func(r chi.Router) {
		r.Handle(SSEPath, sse.SSEHandler())
		r.Handle(MessagePath, sse.MessageHandler())
	})
}

func newRouter(opts HTTPOptions, mount func(r chi.Router)) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(opts.logger()))
	router.Use(middleware.Recoverer)

	router.Get(HealthPath, handleHealth)
	router.Group(func(r chi.Router) {
		r.Use(bearerAuth(opts.Token))
		mount(r)
	})
	return router
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), want) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
					"remote", r.RemoteAddr,
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func baseURL(opts HTTPOptions) string {
	if opts.BaseURL != "" {
		return opts.BaseURL
	}
	host, port, err := net.SplitHostPort(opts.Addr)
	if err != nil {
		return "http://" + opts.Addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// ListenAndServe listens on addr and serves handler until ctx is done.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return Serve(ctx, ln, handler, logger)
}

// Serve serves handler on ln until ctx is done, then shuts down. Long-lived
// streams are cancelled through their request contexts.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *log.Logger) error {
	requestCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return requestCtx },
		ErrorLog:          logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel}),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "addr", ln.Addr().String())
	cancelRequests()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
