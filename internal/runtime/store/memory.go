package store

import (
	"context"
	"sync"

	errspkg "github.com/drblury/vehicleflow/internal/runtime/errors"
	"github.com/drblury/vehicleflow/internal/runtime/vehicle"
)

// Memory keeps vehicles in process. It is used for dry runs and tests.
type Memory struct {
	mu       sync.RWMutex
	order    []string
	vehicles map[string]vehicle.Vehicle
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{vehicles: make(map[string]vehicle.Vehicle)}
}

// InsertVehicles stores all vehicles under fresh ids.
func (m *Memory) InsertVehicles(ctx context.Context, vehicles []vehicle.Vehicle) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errspkg.New(errspkg.ErrPersistence, "insert vehicles", err)
	}

	ids := newIDs(len(vehicles))

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range vehicles {
		m.vehicles[ids[i]] = v
		m.order = append(m.order, ids[i])
	}
	return ids, nil
}

// Get returns the vehicle stored under id.
func (m *Memory) Get(id string) (vehicle.Vehicle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	return v, ok
}

// All returns every stored vehicle in insertion order.
func (m *Memory) All() []vehicle.Vehicle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]vehicle.Vehicle, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.vehicles[id])
	}
	return out
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
