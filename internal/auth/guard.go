package auth

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wuwenbin0122/authgate/internal/db"
	"github.com/wuwenbin0122/authgate/internal/metrics"
)

// Connection is an established user store session.
type Connection struct {
	Users db.UserRepository
	// Close releases the session. It may be nil.
	Close func(context.Context) error
}

// ConnectFunc opens a store session.
type ConnectFunc func(ctx context.Context) (*Connection, error)

// GuardConfig lists the settings that must be present before connecting.
type GuardConfig struct {
	StoreURI string
	Secret   string
}

// Guard lazily establishes the store connection on first use and memoizes it
// for the lifetime of the process. Concurrent first callers share a single
// connection attempt; a failed attempt is not remembered, so the next call retries.
type Guard struct {
	cfg     GuardConfig
	connect ConnectFunc
	logger  *zap.Logger
	metrics *metrics.Metrics

	conn  atomic.Pointer[Connection]
	group singleflight.Group
}

func NewGuard(cfg GuardConfig, connect ConnectFunc, logger *zap.Logger, m *metrics.Metrics) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{cfg: cfg, connect: connect, logger: logger, metrics: m}
}

// EnsureConnected returns the user repository, connecting first if needed.
func (g *Guard) EnsureConnected(ctx context.Context) (db.UserRepository, error) {
	if conn := g.conn.Load(); conn != nil {
		return conn.Users, nil
	}

	if strings.TrimSpace(g.cfg.StoreURI) == "" || strings.TrimSpace(g.cfg.Secret) == "" {
		return nil, ErrConfiguration
	}

	result, err, _ := g.group.Do("connect", func() (interface{}, error) {
		if conn := g.conn.Load(); conn != nil {
			return conn, nil
		}

		// Callers sharing this flight must not fail because the first one went away.
		conn, err := g.connect(context.WithoutCancel(ctx))
		if err == nil && (conn == nil || conn.Users == nil) {
			err = fmt.Errorf("connect returned no user repository")
		}
		if err != nil {
			g.metrics.ObserveConnect("failure")
			g.logger.Warn("user store connection failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		g.conn.Store(conn)
		g.metrics.ObserveConnect("success")
		g.logger.Info("user store connected")
		return conn, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*Connection).Users, nil
}

// Connected reports whether a connection has been established.
func (g *Guard) Connected() bool {
	return g.conn.Load() != nil
}

// Close releases the memoized connection, if any.
func (g *Guard) Close(ctx context.Context) error {
	conn := g.conn.Load()
	if conn == nil || conn.Close == nil {
		return nil
	}
	return conn.Close(ctx)
}
