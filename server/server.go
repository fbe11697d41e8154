package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hupe1980/convomesh/logging"
)

// ShutdownTimeout bounds the graceful shutdown of Serve.
const ShutdownTimeout = 10 * time.Second

// Serve runs srv until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, logger logging.Logger) error {
	logger = logging.OrNoOp(logger)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.listen", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	logger.Info("server.shutdown", "addr", srv.Addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NewHTTPServer wraps handler in a server with conservative timeouts. No
// write timeout is set since chat streams and websockets are long-lived.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
