package datastore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const badgerPrefix = "user:"

// Badger stores one key per identity under the "user:" prefix.
type Badger struct {
	db *badger.DB
}

// NewBadger opens a Badger directory. The path ":memory:" opens an in-memory instance.
func NewBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	if dir == ":memory:" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	db, err := badger.Open(opts.WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("datastore: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) Load(_ context.Context) (Records, error) {
	records := make(Records)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			identity := string(item.Key()[len(badgerPrefix):])
			err := item.Value(func(val []byte) error {
				rec, err := unmarshalRecord(identity, val)
				if err != nil {
					return err
				}
				records[identity] = rec
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("datastore: load badger: %w", err)
	}
	return records, nil
}

// Save writes every record and deletes keys no longer present, in one transaction.
func (b *Badger) Save(_ context.Context, records Records) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		opts := badger.IteratorOptions{Prefix: []byte(badgerPrefix)}
		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := records[string(key[len(badgerPrefix):])]; !ok {
				stale = append(stale, key)
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for id, rec := range records {
			data, err := marshalRecord(rec)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(badgerPrefix+id), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("datastore: save badger: %w", err)
	}
	return nil
}
