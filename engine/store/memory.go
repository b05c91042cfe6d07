// Package store provides in-memory implementations of the engine's
// persistence interfaces, used for tests and development.
package store

import (
	"context"
	"sync"

	"github.com/warp/booking-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory LedgerStore + UnitStore (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	rows  map[rowKey]engine.LedgerRow
	units map[engine.UnitID]engine.InventoryUnit
}

type rowKey struct {
	UnitID engine.UnitID
	Date   engine.Date
}

func NewMemory() *Memory {
	return &Memory{
		rows:  make(map[rowKey]engine.LedgerRow),
		units: make(map[engine.UnitID]engine.InventoryUnit),
	}
}

// -----------------------------------------------------------------------------
// engine.LedgerStore
// -----------------------------------------------------------------------------

func (m *Memory) GetRows(_ context.Context, unitID engine.UnitID, stay engine.StayRange) ([]engine.LedgerRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.LedgerRow
	for _, d := range stay.Dates() {
		if row, ok := m.rows[rowKey{UnitID: unitID, Date: d}]; ok {
			result = append(result, row)
		}
	}
	return result, nil
}

func (m *Memory) UpsertRow(_ context.Context, row engine.LedgerRow, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertLocked(row, expectedVersion)
}

func (m *Memory) upsertLocked(row engine.LedgerRow, expectedVersion int64) error {
	k := rowKey{UnitID: row.UnitID, Date: row.Date}
	existing, ok := m.rows[k]
	if ok && existing.Version != expectedVersion {
		return engine.ErrConcurrentModification
	}
	if !ok && expectedVersion != 0 {
		return engine.ErrConcurrentModification
	}
	row.Version = expectedVersion + 1
	m.rows[k] = row
	return nil
}

// WithTx executes fn against a staging copy and commits on success. The
// memory store holds its write lock for the whole transaction, which gives
// the same single-writer semantics as SQLite under its store mutex.
func (m *Memory) WithTx(_ context.Context, fn func(engine.LedgerStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := &txMemory{parent: m, writes: make(map[rowKey]engine.LedgerRow)}
	if err := fn(staged); err != nil {
		return err
	}
	for k, row := range staged.writes {
		m.rows[k] = row
	}
	return nil
}

// txMemory buffers writes until commit so a failed transaction mutates
// nothing. Reads see the buffered writes (read-your-writes within a tx).
type txMemory struct {
	parent *Memory
	writes map[rowKey]engine.LedgerRow
}

func (t *txMemory) GetRows(_ context.Context, unitID engine.UnitID, stay engine.StayRange) ([]engine.LedgerRow, error) {
	var result []engine.LedgerRow
	for _, d := range stay.Dates() {
		k := rowKey{UnitID: unitID, Date: d}
		if row, ok := t.writes[k]; ok {
			result = append(result, row)
			continue
		}
		if row, ok := t.parent.rows[k]; ok {
			result = append(result, row)
		}
	}
	return result, nil
}

func (t *txMemory) UpsertRow(_ context.Context, row engine.LedgerRow, expectedVersion int64) error {
	k := rowKey{UnitID: row.UnitID, Date: row.Date}
	current, ok := t.writes[k]
	if !ok {
		current, ok = t.parent.rows[k]
	}
	if ok && current.Version != expectedVersion {
		return engine.ErrConcurrentModification
	}
	if !ok && expectedVersion != 0 {
		return engine.ErrConcurrentModification
	}
	row.Version = expectedVersion + 1
	t.writes[k] = row
	return nil
}

// -----------------------------------------------------------------------------
// engine.UnitStore
// -----------------------------------------------------------------------------

func (m *Memory) GetUnit(_ context.Context, id engine.UnitID) (*engine.InventoryUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	unit, ok := m.units[id]
	if !ok {
		return nil, nil
	}
	u := unit
	return &u, nil
}

func (m *Memory) SaveUnit(_ context.Context, unit engine.InventoryUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[unit.ID] = unit
	return nil
}

func (m *Memory) ListUnits(_ context.Context, propertyID engine.PropertyID) ([]engine.InventoryUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.InventoryUnit
	for _, u := range m.units {
		if propertyID == "" || u.PropertyID == propertyID {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *Memory) DeactivateUnit(_ context.Context, id engine.UnitID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.units[id]
	if !ok {
		return engine.ErrUnitNotFound
	}
	unit.Active = false
	m.units[id] = unit
	return nil
}
