// Package store persists vehicles. Every implementation inserts a whole batch
// atomically and returns one generated id per vehicle, in input order.
package store

import (
	"context"
	"fmt"
	"strings"

	errspkg "github.com/drblury/vehicleflow/internal/runtime/errors"
	idspkg "github.com/drblury/vehicleflow/internal/runtime/ids"
	"github.com/drblury/vehicleflow/internal/runtime/vehicle"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// NewID generates row identifiers.
var NewID = idspkg.CreateUUID

// Store is a vehicle repository that owns its connection.
type Store interface {
	InsertVehicles(ctx context.Context, vehicles []vehicle.Vehicle) ([]string, error)
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver      string
	PostgresURL string
	SQLiteFile  string
}

// Open builds the store selected by cfg.Driver. A store that cannot be
// reached is a configuration error that also matches ErrPersistence.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres, "postgresql":
		if cfg.PostgresURL == "" {
			return nil, errspkg.Newf(errspkg.ErrConfiguration, "open store", "postgres url is required")
		}
		s, err := NewPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, errspkg.New(errspkg.ErrConfiguration, "open store", err)
		}
		return s, nil
	case DriverSQLite:
		s, err := NewSQLite(ctx, cfg.SQLiteFile)
		if err != nil {
			return nil, errspkg.New(errspkg.ErrConfiguration, "open store", err)
		}
		return s, nil
	case DriverMemory, "":
		return NewMemory(), nil
	default:
		return nil, errspkg.Newf(errspkg.ErrConfiguration, "open store", "unsupported store driver %q", cfg.Driver)
	}
}

func newIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = NewID()
	}
	return ids
}

func persistenceError(op string, err error) error {
	return errspkg.New(errspkg.ErrPersistence, op, err)
}

func rowError(index int, err error) error {
	return fmt.Errorf("vehicle %d: %w", index, err)
}
