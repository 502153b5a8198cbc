package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drblury/vehicleflow/internal/runtime/vehicle"
)

const insertVehicleSQL = `
	INSERT INTO vehicles (id, make, model, model_year, vin, dln)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// Postgres stores vehicles through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and verifies connectivity.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, persistenceError("parse postgres url", err)
	}

	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, persistenceError("connect postgres", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, persistenceError("ping postgres", err)
	}

	return &Postgres{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. The pool is closed by Close.
func NewPostgresFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// InsertVehicles inserts all vehicles in one transaction using a single
// pipelined batch.
func (p *Postgres) InsertVehicles(ctx context.Context, vehicles []vehicle.Vehicle) ([]string, error) {
	if len(vehicles) == 0 {
		return []string{}, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, persistenceError("begin insert", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ids := newIDs(len(vehicles))
	batch := &pgx.Batch{}
	for i, v := range vehicles {
		batch.Queue(insertVehicleSQL, ids[i], v.Make, v.Model, v.ModelYear, v.VIN, v.DLN)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range vehicles {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return nil, persistenceError("insert vehicles", rowError(i, err))
		}
	}
	if err := results.Close(); err != nil {
		return nil, persistenceError("insert vehicles", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceError("commit insert", err)
	}
	return ids, nil
}

// Close closes the underlying pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
