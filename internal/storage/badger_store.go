// internal/storage/badger_store.go
package storage

import (
    "encoding/json"
    "errors"
    "fmt"
    "strings"

    apperrors "minigit/internal/errors"

    "github.com/dgraph-io/badger/v4"
)

// Entity represents any storable entity with an ID
type Entity interface {
    GetID() string
}

// BadgerStore keeps JSON entities under "<prefix>:<id>" keys
type BadgerStore struct {
    db     *badger.DB
    prefix string
}

func NewBadgerStore(db *badger.DB, prefix string) *BadgerStore {
    return &BadgerStore{
        db:     db,
        prefix: prefix,
    }
}

func (s *BadgerStore) makeKey(id string) []byte {
    return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore) keyPrefix() []byte {
    return []byte(s.prefix + ":")
}

func (s *BadgerStore) stripPrefix(key []byte) string {
    return strings.TrimPrefix(string(key), s.prefix+":")
}

func (s *BadgerStore) notFound(id string) error {
    return apperrors.NotFound(fmt.Sprintf("%s not found: %s", s.prefix, id))
}

func marshal(entity Entity) ([]byte, error) {
    if entity.GetID() == "" {
        return nil, apperrors.ValidationError("entity ID cannot be empty", nil)
    }
    data, err := json.Marshal(entity)
    if err != nil {
        return nil, fmt.Errorf("marshaling entity: %w", err)
    }
    return data, nil
}

// Create stores a new entity and fails if the ID is taken
func (s *BadgerStore) Create(entity Entity) error {
    data, err := marshal(entity)
    if err != nil {
        return err
    }

    key := s.makeKey(entity.GetID())
    return s.db.Update(func(txn *badger.Txn) error {
        _, err := txn.Get(key)
        if err == nil {
            return apperrors.ValidationError(fmt.Sprintf("%s already exists: %s", s.prefix, entity.GetID()), entity.GetID())
        } else if !errors.Is(err, badger.ErrKeyNotFound) {
            return err
        }

        return txn.Set(key, data)
    })
}

// Put stores entity, replacing any existing value
func (s *BadgerStore) Put(entity Entity) error {
    data, err := marshal(entity)
    if err != nil {
        return err
    }

    key := s.makeKey(entity.GetID())
    return s.db.Update(func(txn *badger.Txn) error {
        return txn.Set(key, data)
    })
}

func (s *BadgerStore) Get(id string, entity any) error {
    key := s.makeKey(id)

    err := s.db.View(func(txn *badger.Txn) error {
        item, err := txn.Get(key)
        if err != nil {
            return err
        }

        return item.Value(func(val []byte) error {
            return json.Unmarshal(val, entity)
        })
    })

    if errors.Is(err, badger.ErrKeyNotFound) {
        return s.notFound(id)
    }
    return err
}

// Exists reports whether id is stored
func (s *BadgerStore) Exists(id string) (bool, error) {
    key := s.makeKey(id)

    err := s.db.View(func(txn *badger.Txn) error {
        _, err := txn.Get(key)
        return err
    })

    if errors.Is(err, badger.ErrKeyNotFound) {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}

// Update replaces an existing entity and fails if it is missing
func (s *BadgerStore) Update(entity Entity) error {
    data, err := marshal(entity)
    if err != nil {
        return err
    }

    key := s.makeKey(entity.GetID())
    return s.db.Update(func(txn *badger.Txn) error {
        _, err := txn.Get(key)
        if errors.Is(err, badger.ErrKeyNotFound) {
            return s.notFound(entity.GetID())
        } else if err != nil {
            return err
        }

        return txn.Set(key, data)
    })
}

func (s *BadgerStore) Delete(id string) error {
    key := s.makeKey(id)

    return s.db.Update(func(txn *badger.Txn) error {
        _, err := txn.Get(key)
        if errors.Is(err, badger.ErrKeyNotFound) {
            return s.notFound(id)
        } else if err != nil {
            return err
        }

        return txn.Delete(key)
    })
}

// List decodes every entity under the prefix into results, which must be a
// pointer to a slice. Entities come back in key order.
func (s *BadgerStore) List(results any) error {
    var values []json.RawMessage

    err := s.db.View(func(txn *badger.Txn) error {
        it := txn.NewIterator(badger.DefaultIteratorOptions)
        defer it.Close()

        prefix := s.keyPrefix()
        for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
            val, err := it.Item().ValueCopy(nil)
            if err != nil {
                return err
            }
            values = append(values, val)
        }
        return nil
    })
    if err != nil {
        return fmt.Errorf("listing %s: %w", s.prefix, err)
    }

    // Marshal collected values into final result
    data, err := json.Marshal(values)
    if err != nil {
        return fmt.Errorf("listing %s: %w", s.prefix, err)
    }
    return json.Unmarshal(data, results)
}

// IDs returns the stored IDs in key order
func (s *BadgerStore) IDs() ([]string, error) {
    var ids []string

    err := s.db.View(func(txn *badger.Txn) error {
        opts := badger.DefaultIteratorOptions
        opts.PrefetchValues = false
        it := txn.NewIterator(opts)
        defer it.Close()

        prefix := s.keyPrefix()
        for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
            ids = append(ids, s.stripPrefix(it.Item().KeyCopy(nil)))
        }
        return nil
    })
    if err != nil {
        return nil, fmt.Errorf("listing %s ids: %w", s.prefix, err)
    }
    return ids, nil
}

// Replace atomically swaps the whole prefix for entities
func (s *BadgerStore) Replace(entities []Entity) error {
    encoded := make([][]byte, len(entities))
    for i, entity := range entities {
        data, err := marshal(entity)
        if err != nil {
            return err
        }
        encoded[i] = data
    }

    return s.db.Update(func(txn *badger.Txn) error {
        if err := s.deleteAll(txn); err != nil {
            return err
        }
        for i, entity := range entities {
            if err := txn.Set(s.makeKey(entity.GetID()), encoded[i]); err != nil {
                return err
            }
        }
        return nil
    })
}

// Clear removes every entity under the prefix
func (s *BadgerStore) Clear() error {
    return s.db.Update(s.deleteAll)
}

func (s *BadgerStore) deleteAll(txn *badger.Txn) error {
    opts := badger.DefaultIteratorOptions
    opts.PrefetchValues = false
    it := txn.NewIterator(opts)

    var keys [][]byte
    prefix := s.keyPrefix()
    for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
        keys = append(keys, it.Item().KeyCopy(nil))
    }
    it.Close()

    for _, key := range keys {
        if err := txn.Delete(key); err != nil {
            return err
        }
    }
    return nil
}
