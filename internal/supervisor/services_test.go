package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeListener struct {
	stop     chan struct{}
	failWith error
	shutdown atomic.Bool
}

func newFakeListener() *fakeListener {
	return &fakeListener{stop: make(chan struct{})}
}

func (f *fakeListener) ListenAndServe() error {
	if f.failWith != nil {
		return f.failWith
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeListener) Shutdown(context.Context) error {
	f.shutdown.Store(true)
	close(f.stop)
	return nil
}

func TestListenerServiceShutsDownOnCancel(t *testing.T) {
	l := newFakeListener()
	svc := NewListenerService("api", l, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.True(t, l.shutdown.Load())
	assert.Equal(t, "api", svc.String())
}

func TestListenerServiceReportsListenFailure(t *testing.T) {
	l := newFakeListener()
	l.failWith = errors.New("address in use")
	svc := NewListenerService("chat", l, 0)

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat failed")
	assert.Contains(t, err.Error(), "address in use")
}

type stubService struct {
	started chan struct{}
}

func (s *stubService) Serve(ctx context.Context) error {
	close(s.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestTreeRunsServices(t *testing.T) {
	tree := NewTree(DefaultTreeConfig())
	svc := &stubService{started: make(chan struct{})}
	tree.AddMessagingService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	select {
	case <-svc.started:
	case <-time.After(2 * time.Second):
		t.Fatal("service not started")
	}
	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
}
