package html2preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alnah/go-html2preview/internal/hints"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// loopbackHost is the only interface the static server listens on.
const loopbackHost = "127.0.0.1"

// Server timeouts. The server only talks to the local browser.
const (
	serverReadHeaderTimeout = 10 * time.Second
	serverShutdownTimeout   = 5 * time.Second
)

// staticServer abstracts the HTTP server so the orchestrator can be tested without sockets.
type staticServer interface {
	URL(relativePath string) string
	Stop(ctx context.Context) error
}

// serverStarter starts a staticServer for a run.
type serverStarter func(ctx context.Context, rootDir string, port int, logger *slog.Logger) (staticServer, error)

// Compile-time interface check.
var _ staticServer = (*ServerHandle)(nil)

// ServerHandle is a running loopback file server. The listening socket is
// bound before StartServer returns, so Addr and URL are valid immediately.
type ServerHandle struct {
	srv      *http.Server
	listener net.Listener
	addr     string
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
	logger   *slog.Logger
}

// StartServer serves rootDir read-only on 127.0.0.1:port. Port 0 lets the
// OS pick a free port. The handler is safe for concurrent requests.
// A canceled ctx is returned as is, not as ErrServerBind.
func StartServer(ctx context.Context, rootDir string, port int, logger *slog.Logger) (*ServerHandle, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if port < 0 || port > MaxPort {
		return nil, fmt.Errorf("%w: %v", ErrServerBind, fmt.Errorf("%w: %d", ErrInvalidPort, port))
	}

	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerBind, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrServerBind, rootDir)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(loopbackHost, strconv.Itoa(port)))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var hint string
		if port != 0 {
			hint = hints.ForPortInUse()
		}
		return nil, fmt.Errorf("%w: %v%s", ErrServerBind, err, hint)
	}

	h := &ServerHandle{
		listener: ln,
		addr:     ln.Addr().String(),
		done:     make(chan struct{}),
		logger:   logger,
	}
	h.srv = &http.Server{
		Handler:           newStaticRouter(rootDir, logger),
		ReadHeaderTimeout: serverReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	go func() {
		defer close(h.done)
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("static server stopped", "addr", h.addr, "err", err)
		}
	}()

	logger.Debug("static server listening", "addr", h.addr, "root", rootDir)
	return h, nil
}

// newStaticRouter builds the read-only file router. Only GET and HEAD are
// routed, other methods get 405.
func newStaticRouter(rootDir string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(requestLogger(logger))

	files := http.FileServer(http.FS(os.DirFS(rootDir)))
	r.Get("/*", files.ServeHTTP)
	r.Head("/*", files.ServeHTTP)
	return r
}

// requestLogger logs each request at debug level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("static request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start))
		})
	}
}

// Addr returns the bound host:port.
func (h *ServerHandle) Addr() string {
	return h.addr
}

// URL returns the absolute address of relativePath on this server.
// Each path segment is escaped so names with spaces or '#' survive.
func (h *ServerHandle) URL(relativePath string) string {
	segments := strings.Split(relativePath, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "http://" + h.addr + "/" + strings.Join(segments, "/")
}

// Stop shuts the server down, waiting for in-flight requests up to the
// context deadline, then force-closes. Safe to call more than once.
func (h *ServerHandle) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
		defer cancel()

		if err := h.srv.Shutdown(shutdownCtx); err != nil {
			h.stopErr = errors.Join(err, h.srv.Close())
		}
		<-h.done
		h.logger.Debug("static server stopped", "addr", h.addr)
	})
	return h.stopErr
}

// startServer adapts StartServer to the serverStarter signature.
func startServer(ctx context.Context, rootDir string, port int, logger *slog.Logger) (staticServer, error) {
	h, err := StartServer(ctx, rootDir, port, logger)
	if err != nil {
		return nil, err
	}
	return h, nil
}
