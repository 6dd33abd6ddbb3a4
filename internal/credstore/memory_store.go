package credstore

import (
	"context"
	"sync"
)

type MemoryStore struct {
	records sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (st *MemoryStore) Read(_ context.Context, key string) ([]byte, error) {
	val, ok := st.records.Load(key)
	if !ok {
		return nil, nil
	}
	data := val.([]byte)
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (st *MemoryStore) Write(_ context.Context, key string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	st.records.Store(key, stored)
	return nil
}

func (st *MemoryStore) Delete(_ context.Context, key string) error {
	st.records.Delete(key)
	return nil
}

func (st *MemoryStore) WipeAll(_ context.Context) error {
	st.records.Range(func(key, _ interface{}) bool {
		st.records.Delete(key)
		return true
	})
	return nil
}

func (st *MemoryStore) Close() error {
	return nil
}
