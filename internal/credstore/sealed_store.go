package credstore

import (
	"context"
	"log"

	"wagate/internal/crypto"
)

// SealedStore wraps another store and encrypts every blob at rest with
// ChaCha20-Poly1305. A blob that fails to open is reported as absent: the
// session will re-pair rather than hand corrupt key material to the engine.
type SealedStore struct {
	inner StoreInterface
	key   []byte
}

func NewSealedStore(inner StoreInterface, key []byte) *SealedStore {
	return &SealedStore{inner: inner, key: key}
}

func (st *SealedStore) Read(ctx context.Context, key string) ([]byte, error) {
	sealed, err := st.inner.Read(ctx, key)
	if err != nil || sealed == nil {
		return nil, err
	}

	raw, err := crypto.OpenBlob(st.key, sealed)
	if err != nil {
		log.Printf("⚠️  Could not open sealed credential %q, treating as absent: %v", key, err)
		return nil, nil
	}
	return raw, nil
}

func (st *SealedStore) Write(ctx context.Context, key string, data []byte) error {
	sealed, err := crypto.SealBlob(st.key, data)
	if err != nil {
		return err
	}
	return st.inner.Write(ctx, key, sealed)
}

func (st *SealedStore) Delete(ctx context.Context, key string) error {
	return st.inner.Delete(ctx, key)
}

func (st *SealedStore) WipeAll(ctx context.Context) error {
	return st.inner.WipeAll(ctx)
}

func (st *SealedStore) Close() error {
	return st.inner.Close()
}
