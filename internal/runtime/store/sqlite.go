package store

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/drblury/vehicleflow/internal/runtime/vehicle"
)

const defaultSQLiteFile = "vehicleflow.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vehicles (
	id          TEXT PRIMARY KEY,
	make        TEXT NOT NULL,
	model       TEXT NOT NULL,
	model_year  TEXT NOT NULL,
	vin         TEXT NOT NULL,
	dln         TEXT NOT NULL,
	created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_vehicles_vin ON vehicles(vin);
`

// SQLite stores vehicles in a local database file. Use ":memory:" for an
// ephemeral database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens file and creates the schema when missing.
func NewSQLite(ctx context.Context, file string) (*SQLite, error) {
	if file == "" {
		file = defaultSQLiteFile
	}

	db, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, persistenceError("open sqlite", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, persistenceError("create sqlite schema", err)
	}

	return &SQLite{db: db}, nil
}

// InsertVehicles inserts all vehicles in one transaction.
func (s *SQLite) InsertVehicles(ctx context.Context, vehicles []vehicle.Vehicle) ([]string, error) {
	if len(vehicles) == 0 {
		return []string{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistenceError("begin insert", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vehicles (id, make, model, model_year, vin, dln) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, persistenceError("prepare insert", err)
	}
	defer stmt.Close()

	ids := newIDs(len(vehicles))
	for i, v := range vehicles {
		if _, err := stmt.ExecContext(ctx, ids[i], v.Make, v.Model, v.ModelYear, v.VIN, v.DLN); err != nil {
			return nil, persistenceError("insert vehicles", rowError(i, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, persistenceError("commit insert", err)
	}
	return ids, nil
}

// Get loads the vehicle stored under id.
func (s *SQLite) Get(ctx context.Context, id string) (vehicle.Vehicle, error) {
	var v vehicle.Vehicle
	err := s.db.QueryRowContext(ctx,
		`SELECT make, model, model_year, vin, dln FROM vehicles WHERE id = ?`, id,
	).Scan(&v.Make, &v.Model, &v.ModelYear, &v.VIN, &v.DLN)
	if err != nil {
		return vehicle.Vehicle{}, persistenceError("get vehicle", err)
	}
	return v, nil
}

// Count returns the number of stored vehicles.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&n); err != nil {
		return 0, persistenceError("count vehicles", err)
	}
	return n, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
