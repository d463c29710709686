package registry

import (
	"fmt"
	"sync/atomic"

	memdb "github.com/hashicorp/go-memdb"

	"github.com/on-the-ground/proxy_ive_go/proxies/model"
)

const (
	typesTable    = "types"
	idIndex       = "id"
	strategyIndex = "strategy"
)

type record struct {
	ID       string
	Strategy string
	Key      Key
	Value    any
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			typesTable: {
				Name: typesTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					strategyIndex: {
						Name:    strategyIndex,
						Indexer: &memdb.StringFieldIndex{Field: "Strategy"},
					},
				},
			},
		},
	}
}

// memDBStore keeps definitions in a go-memdb table so they can be listed by
// strategy.
type memDBStore[V any] struct {
	db atomic.Pointer[memdb.MemDB]
}

// NewMemDBStore returns a store backed by go-memdb.
func NewMemDBStore[V any]() (Store[V], error) {
	s := &memDBStore[V]{}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *memDBStore[V]) Load(key Key) (value V, ok bool, err error) {
	txn := s.db.Load().Txn(false)
	defer txn.Abort()

	raw, err := txn.First(typesTable, idIndex, key.String())
	if err != nil || raw == nil {
		return value, false, err
	}
	value, ok = raw.(*record).Value.(V)
	if !ok {
		return value, false, fmt.Errorf("%w: record %s holds %T", model.ErrInternalInvariant, key, raw.(*record).Value)
	}
	return value, true, nil
}

func (s *memDBStore[V]) InsertIfAbsent(key Key, value V) (inserted bool, err error) {
	txn := s.db.Load().Txn(true)
	defer txn.Abort()

	old, err := txn.First(typesTable, idIndex, key.String())
	if err != nil {
		return false, err
	} else if old != nil {
		return false, nil
	}

	if err := txn.Insert(typesTable, &record{
		ID:       key.String(),
		Strategy: string(key.Strategy),
		Key:      key,
		Value:    value,
	}); err != nil {
		return false, err
	}
	txn.Commit()
	return true, nil
}

func (s *memDBStore[V]) Entries(strategy model.Strategy) ([]Entry[V], error) {
	txn := s.db.Load().Txn(false)
	defer txn.Abort()

	var (
		it  memdb.ResultIterator
		err error
	)
	if strategy == "" {
		it, err = txn.Get(typesTable, idIndex)
	} else {
		it, err = txn.Get(typesTable, strategyIndex, string(strategy))
	}
	if err != nil {
		return nil, err
	}

	var out []Entry[V]
	for obj := it.Next(); obj != nil; obj = it.Next() {
		rec := obj.(*record)
		if v, ok := rec.Value.(V); ok {
			out = append(out, Entry[V]{Key: rec.Key, Value: v})
		}
	}
	return out, nil
}

func (s *memDBStore[V]) Reset() error {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return err
	}
	s.db.Store(db)
	return nil
}
