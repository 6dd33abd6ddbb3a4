package credstore

import "context"

// StoreInterface is the durable key/value collection backing the session
// credentials. Read returns nil for an absent key; Delete of an absent key
// is not an error.
type StoreInterface interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	WipeAll(ctx context.Context) error
	Close() error
}
