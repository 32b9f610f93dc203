// Package store owns the durable identity -> role mapping.
//
// RoleStore keeps the authoritative copy in memory and flushes the whole
// mapping to a datastore.Persister after every mutation. A mutation builds
// the next mapping, saves it, and only then publishes it to readers, so a
// failed flush leaves the previous mapping in place. A crash mid-write is
// best-effort, as with any non-transactional file write.
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/soarclient/soarsocket/pkg/datastore"
	"github.com/soarclient/soarsocket/pkg/model"
)

// ErrPersist wraps every durable-write failure.
var ErrPersist = errors.New("store: persist failed")

// UpdateFunc computes the new record from the current one. exists is false
// when the identity has no stored record (current is then zero apart from Identity).
type UpdateFunc func(current model.UserRecord, exists bool) model.UserRecord

// RoleStore is safe for concurrent use. Mutations are serialized by writeMu
// and never hold mu while the persister runs, so readers are not blocked
// by a slow save.
type RoleStore struct {
	writeMu   sync.Mutex
	mu        sync.RWMutex // guards the records field, not the map contents
	records   map[string]model.UserRecord
	persister datastore.Persister
}

// Open loads every record from p.
func Open(ctx context.Context, p datastore.Persister) (*RoleStore, error) {
	records, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	if records == nil {
		records = make(map[string]model.UserRecord)
	}
	for id, rec := range records {
		rec.Identity = id
		records[id] = rec
	}
	return &RoleStore{records: records, persister: p}, nil
}

// Get returns the stored record for identity.
func (s *RoleStore) Get(identity string) (model.UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[identity]
	return rec, ok
}

// RoleOf returns the stored role, or Normal when the identity is absent or
// its record carries no role.
func (s *RoleStore) RoleOf(identity string) model.Role {
	rec, _ := s.Get(identity)
	return rec.Role.Or(model.RoleNormal)
}

// Put stores rec (keyed by rec.Identity) and flushes.
func (s *RoleStore) Put(ctx context.Context, rec model.UserRecord) error {
	_, err := s.Update(ctx, rec.Identity, func(model.UserRecord, bool) model.UserRecord {
		return rec
	})
	return err
}

// Update applies fn to the identity's record and flushes. Readers keep
// seeing the previous record until the flush succeeds.
func (s *RoleStore) Update(ctx context.Context, identity string, fn UpdateFunc) (model.UserRecord, error) {
	if err := model.ValidateIdentity(identity); err != nil {
		return model.UserRecord{}, fmt.Errorf("store: update: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, existed := s.snapshot()[identity]
	current.Identity = identity
	rec := fn(current, existed)
	rec.Identity = identity
	if rec.Role != model.RoleUnset && !rec.Role.Valid() {
		return model.UserRecord{}, fmt.Errorf("store: update %q: %w", identity, model.ErrInvalidRole)
	}

	next := maps.Clone(s.snapshot())
	next[identity] = rec
	if err := s.commit(ctx, next); err != nil {
		return model.UserRecord{}, err
	}
	return rec, nil
}

// Remove deletes the identity's record and flushes. Removing an absent
// identity still flushes, matching the unconditional save of the mutation path.
func (s *RoleStore) Remove(ctx context.Context, identity string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := maps.Clone(s.snapshot())
	_, existed := next[identity]
	delete(next, identity)
	if err := s.commit(ctx, next); err != nil {
		return false, err
	}
	return existed, nil
}

// Merge stores every record in one flush. Used by YAML import.
func (s *RoleStore) Merge(ctx context.Context, recs []model.UserRecord) error {
	for _, rec := range recs {
		if err := model.ValidateIdentity(rec.Identity); err != nil {
			return fmt.Errorf("store: merge: %w", err)
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := maps.Clone(s.snapshot())
	for _, rec := range recs {
		next[rec.Identity] = rec
	}
	return s.commit(ctx, next)
}

// All returns a copy of the full mapping.
func (s *RoleStore) All() map[string]model.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.records)
}

// Len returns the number of stored records.
func (s *RoleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close releases the persister.
func (s *RoleStore) Close() error {
	return s.persister.Close()
}

// snapshot returns the published mapping. It must be treated as read-only.
func (s *RoleStore) snapshot() map[string]model.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// commit saves next and publishes it. Callers hold writeMu.
func (s *RoleStore) commit(ctx context.Context, next map[string]model.UserRecord) error {
	if err := s.persister.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
	return nil
}
