// Package pool manages per-user connection pools to target databases.
// Every data-plane query runs on a pool built from the requesting user's
// own connection string, so PostgreSQL enforces privileges natively.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"vibedb/internal/domain"
)

const (
	userPoolMinConns    = 0
	userPoolMaxConns    = 3
	userPoolMaxIdleTime = 20 * time.Second
	connectTimeout      = 10 * time.Second
)

// Registry caches one pool per (user, database) pair. Pools are created
// lazily on first use and torn down on Invalidate or Close.
type Registry struct {
	log *slog.Logger

	mu     sync.Mutex
	pools  map[poolKey]*pgxpool.Pool
	closed bool

	activePools prometheus.Gauge
}

type poolKey struct {
	userID   domain.UserID
	database string
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger, reg prometheus.Registerer) *Registry {
	activePools := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vibedb",
		Subsystem: "pool",
		Name:      "active_user_pools",
		Help:      "Number of live per-user connection pools.",
	})
	if reg != nil {
		reg.MustRegister(activePools)
	}

	return &Registry{
		log:         log,
		pools:       make(map[poolKey]*pgxpool.Pool),
		activePools: activePools,
	}
}

// Get returns the pool for (user, database), creating it from connStr on
// first use. The mutex covers pool creation, so two concurrent requests for
// the same pair never race to create two pools.
func (r *Registry) Get(ctx context.Context, userID domain.UserID, database, connStr string) (*pgxpool.Pool, error) {
	key := poolKey{userID: userID, database: database}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, domain.ErrPoolClosed
	}
	if pool, ok := r.pools[key]; ok {
		return pool, nil
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MinConns = userPoolMinConns
	poolConfig.MaxConns = userPoolMaxConns
	poolConfig.MaxConnIdleTime = userPoolMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool for %s: %w", database, err)
	}

	r.pools[key] = pool
	r.activePools.Inc()
	r.log.Debug("created user pool", "user_id", userID, "database", database)
	return pool, nil
}

// Invalidate closes and forgets the pool for (user, database). Called when
// an assignment is revoked or a role's password rotates.
func (r *Registry) Invalidate(userID domain.UserID, database string) {
	key := poolKey{userID: userID, database: database}

	r.mu.Lock()
	pool, ok := r.pools[key]
	if ok {
		delete(r.pools, key)
	}
	r.mu.Unlock()

	if ok {
		pool.Close()
		r.activePools.Dec()
		r.log.Debug("invalidated user pool", "user_id", userID, "database", database)
	}
}

// InvalidateUser closes every pool belonging to one user. Called during
// user removal.
func (r *Registry) InvalidateUser(userID domain.UserID) {
	r.mu.Lock()
	var victims []*pgxpool.Pool
	for key, pool := range r.pools {
		if key.userID == userID {
			victims = append(victims, pool)
			delete(r.pools, key)
		}
	}
	r.mu.Unlock()

	for _, pool := range victims {
		pool.Close()
		r.activePools.Dec()
	}
}

// Len returns the number of live pools.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools)
}

// Close tears down every pool. The registry rejects further Get calls.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	pools := make([]*pgxpool.Pool, 0, len(r.pools))
	for _, pool := range r.pools {
		pools = append(pools, pool)
	}
	r.pools = nil
	r.mu.Unlock()

	for _, pool := range pools {
		pool.Close()
		r.activePools.Dec()
	}
}

// AdminConnString builds the admin connection URL for one database on a
// registered server. The userinfo goes through url.UserPassword so
// passwords containing URL-reserved characters stay intact.
func AdminConnString(server *domain.DatabaseServer, adminPassword, database string) string {
	sslMode := server.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(server.AdminUsername, adminPassword),
		Host:     fmt.Sprintf("%s:%d", server.Host, server.Port),
		Path:     "/" + database,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

// AdminConnect opens a short-lived admin connection. Role and grant
// materialization uses these rather than pooled connections; the caller
// must close the connection.
func AdminConnect(ctx context.Context, connStr string) (*pgx.Conn, error) {
	connConfig, err := pgx.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse admin connection string: %w", err)
	}
	connConfig.ConnectTimeout = connectTimeout

	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect as admin: %w", err)
	}
	return conn, nil
}
