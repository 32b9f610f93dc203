// Package datastore persists the identity -> role mapping behind the role store.
//
// Every backend stores the full mapping: Load returns all records at
// startup and Save replaces the persisted mapping with the given one.
// The in-memory role store is the source of truth while the process runs.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soarclient/soarsocket/pkg/model"
)

// Records maps identity to its durable record.
type Records = map[string]model.UserRecord

// Persister loads and saves the full record mapping.
type Persister interface {
	Load(ctx context.Context) (Records, error)
	Save(ctx context.Context, records Records) error
	Close() error
}

// Compile-time checks.
var (
	_ Persister = (*JSONFile)(nil)
	_ Persister = (*SQLite)(nil)
	_ Persister = (*Badger)(nil)
	_ Persister = (*Redis)(nil)
	_ Persister = (*Memory)(nil)
)

var ErrUnsupportedScheme = errors.New("datastore: unsupported store URL scheme")

// Open picks a backend from the store URL:
//
//	usersDb.json, file://usersDb.json  JSON file
//	sqlite://soarsocket.db             SQLite database
//	badger://data/users                Badger directory (badger://:memory: for in-memory)
//	redis://localhost:6379/0           Redis hash
//	memory://                          process memory, lost on exit
func Open(url string) (Persister, error) {
	switch {
	case url == "memory://":
		return NewMemory(nil), nil
	case strings.HasPrefix(url, "file://"):
		return NewJSONFile(strings.TrimPrefix(url, "file://")), nil
	case strings.HasPrefix(url, "sqlite://"):
		return NewSQLite(strings.TrimPrefix(url, "sqlite://"))
	case strings.HasPrefix(url, "badger://"):
		return NewBadger(strings.TrimPrefix(url, "badger://"))
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
		return NewRedis(url)
	case strings.Contains(url, "://"):
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, url)
	case url == "":
		return nil, fmt.Errorf("datastore: empty store URL")
	default:
		return NewJSONFile(url), nil
	}
}

// Scheme returns the backend name Open would choose, for logging.
func Scheme(url string) string {
	if i := strings.Index(url, "://"); i > 0 {
		return url[:i]
	}
	return "file"
}

// CheckURL reports whether Open would accept url, without opening anything.
func CheckURL(url string) error {
	if url == "" {
		return fmt.Errorf("datastore: empty store URL")
	}
	switch Scheme(url) {
	case "file", "sqlite", "badger", "redis", "rediss", "memory":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, url)
	}
}
