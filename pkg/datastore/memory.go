package datastore

import (
	"context"
	"maps"
	"sync"
)

// Memory keeps the mapping in process. It backs tests and memory:// URLs.
type Memory struct {
	mu      sync.Mutex
	records Records
	saveErr error
	loadErr error
	saves   int
}

// NewMemory returns a Memory persister seeded with records (may be nil).
func NewMemory(seed Records) *Memory {
	m := &Memory{records: make(Records, len(seed))}
	maps.Copy(m.records, seed)
	return m
}

func (m *Memory) Load(_ context.Context) (Records, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return maps.Clone(m.records), nil
}

func (m *Memory) Save(_ context.Context, records Records) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = maps.Clone(records)
	m.saves++
	return nil
}

func (m *Memory) Close() error { return nil }

// FailSaves makes every following Save return err (nil restores normal behaviour).
func (m *Memory) FailSaves(err error) {
	m.mu.Lock()
	m.saveErr = err
	m.mu.Unlock()
}

// FailLoads makes every following Load return err.
func (m *Memory) FailLoads(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

// Saves returns how many saves succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
