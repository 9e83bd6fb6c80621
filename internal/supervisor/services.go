package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"letscrap-backend/internal/logging"

	"github.com/gofiber/fiber/v2"
)

// Listener is anything that serves until shut down.
type Listener interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// ListenerService adapts a Listener to suture.Service.
type ListenerService struct {
	server          Listener
	shutdownTimeout time.Duration
	name            string
}

func NewListenerService(name string, server Listener, shutdownTimeout time.Duration) *ListenerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &ListenerService{server: server, shutdownTimeout: shutdownTimeout, name: name}
}

func (s *ListenerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s failed: %w", s.name, err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		logging.Info().Str("service", s.name).Msg("shutting down")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s shutdown failed: %w", s.name, err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *ListenerService) String() string {
	return s.name
}

// FiberListener serves a Fiber app on addr.
type FiberListener struct {
	App  *fiber.App
	Addr string
}

func (f *FiberListener) ListenAndServe() error {
	return f.App.Listen(f.Addr)
}

func (f *FiberListener) Shutdown(ctx context.Context) error {
	return f.App.ShutdownWithContext(ctx)
}
