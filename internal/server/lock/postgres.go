package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/mediavault/internal/common"
)

// advisoryClass namespaces MediaVault's advisory locks from other users of
// the same database.
const advisoryClass = 0x4d56

// Postgres leases tenants with session-level advisory locks, so migrations are
// exclusive across every server process sharing the database. Each lease pins
// one pooled connection until released.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (l *Postgres) TryAcquire(ctx context.Context, tenantID string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock conn: %w", err)
	}

	var ok bool
	err = conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1, hashtext($2))`, advisoryClass, tenantID).Scan(&ok)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		_ = conn.Close()
		return nil, common.ErrMigrationInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1, hashtext($2))`, advisoryClass, tenantID)
			_ = conn.Close()
		})
	}, nil
}
