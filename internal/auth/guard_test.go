package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuwenbin0122/authgate/internal/auth"
	"github.com/wuwenbin0122/authgate/internal/db"
	"github.com/wuwenbin0122/authgate/internal/metrics"
)

func TestGuardRequiresConfiguration(t *testing.T) {
	tests := []struct {
		name string
		cfg  auth.GuardConfig
	}{
		{"missing store uri", auth.GuardConfig{Secret: "s"}},
		{"missing secret", auth.GuardConfig{StoreURI: "mongodb://localhost"}},
		{"blank values", auth.GuardConfig{StoreURI: "  ", Secret: " "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			guard := auth.NewGuard(tt.cfg, func(context.Context) (*auth.Connection, error) {
				calls.Add(1)
				return &auth.Connection{Users: db.NewMemoryUserRepository()}, nil
			}, nil, nil)

			_, err := guard.EnsureConnected(context.Background())
			require.ErrorIs(t, err, auth.ErrConfiguration)
			assert.Zero(t, calls.Load(), "connect must not be attempted without configuration")
			assert.False(t, guard.Connected())
		})
	}
}

func TestGuardRetriesAfterFailure(t *testing.T) {
	m := metrics.New()
	repo := db.NewMemoryUserRepository()
	dialErr := errors.New("server selection timeout")

	var calls atomic.Int32
	guard := auth.NewGuard(auth.GuardConfig{StoreURI: "mongodb://db", Secret: "s"}, func(context.Context) (*auth.Connection, error) {
		if calls.Add(1) == 1 {
			return nil, dialErr
		}
		return &auth.Connection{Users: repo}, nil
	}, nil, m)

	_, err := guard.EnsureConnected(context.Background())
	require.ErrorIs(t, err, auth.ErrStoreUnavailable)
	assert.ErrorIs(t, err, dialErr)
	assert.False(t, guard.Connected())

	users, err := guard.EnsureConnected(context.Background())
	require.NoError(t, err)
	assert.Same(t, repo, users)
	assert.True(t, guard.Connected())

	_, err = guard.EnsureConnected(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load(), "a connected guard must not reconnect")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreConnects.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreConnects.WithLabelValues("success")))
}

func TestGuardRejectsEmptyConnection(t *testing.T) {
	guard := auth.NewGuard(auth.GuardConfig{StoreURI: "mongodb://db", Secret: "s"}, func(context.Context) (*auth.Connection, error) {
		return &auth.Connection{}, nil
	}, nil, nil)

	_, err := guard.EnsureConnected(context.Background())
	assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
}

func TestGuardConcurrentFirstCallsConnectOnce(t *testing.T) {
	repo := db.NewMemoryUserRepository()
	release := make(chan struct{})

	var calls atomic.Int32
	guard := auth.NewGuard(auth.GuardConfig{StoreURI: "mongodb://db", Secret: "s"}, func(context.Context) (*auth.Connection, error) {
		calls.Add(1)
		<-release
		return &auth.Connection{Users: repo}, nil
	}, nil, nil)

	const callers = 32
	var (
		wg   sync.WaitGroup
		errs = make(chan error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			users, err := guard.EnsureConnected(context.Background())
			if err == nil && users != repo {
				err = errors.New("unexpected repository")
			}
			errs <- err
		}()
	}

	// Let the callers pile up on the in-flight attempt before it completes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestGuardIgnoresFirstCallerCancellation(t *testing.T) {
	guard := auth.NewGuard(auth.GuardConfig{StoreURI: "mongodb://db", Secret: "s"}, func(ctx context.Context) (*auth.Connection, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &auth.Connection{Users: db.NewMemoryUserRepository()}, nil
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := guard.EnsureConnected(ctx)
	require.NoError(t, err)
	assert.True(t, guard.Connected())
}

func TestGuardClose(t *testing.T) {
	guard := auth.NewGuard(auth.GuardConfig{StoreURI: "mongodb://db", Secret: "s"}, nil, nil, nil)
	assert.NoError(t, guard.Close(context.Background()), "closing an unconnected guard is a no-op")

	var closed atomic.Bool
	guard = auth.NewGuard(auth.GuardConfig{StoreURI: "mongodb://db", Secret: "s"}, func(context.Context) (*auth.Connection, error) {
		return &auth.Connection{
			Users: db.NewMemoryUserRepository(),
			Close: func(context.Context) error {
				closed.Store(true)
				return nil
			},
		}, nil
	}, nil, nil)

	_, err := guard.EnsureConnected(context.Background())
	require.NoError(t, err)
	require.NoError(t, guard.Close(context.Background()))
	assert.True(t, closed.Load())
}
