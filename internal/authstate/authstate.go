package authstate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"wagate/internal/constants"
	"wagate/internal/credstore"
)

// State is the in-memory view of the durable credential set. It is owned by
// the active connection and rebuilt on every full re-initialization.
type State struct {
	store credstore.StoreInterface
	creds *Credentials
	keys  *KeyAccessor
}

// Load builds the auth state from the credential store. A missing or
// unreadable identity record yields a fresh credential set; store failures
// degrade to "absent" rather than aborting session start.
func Load(ctx context.Context, store credstore.StoreInterface) (*State, error) {
	blob, err := store.Read(ctx, constants.CredentialsKey)
	if err != nil {
		log.Printf("⚠️  Error reading credentials, starting fresh: %v", err)
		blob = nil
	}

	var creds *Credentials
	if len(blob) > 0 {
		creds = &Credentials{}
		if err := json.Unmarshal(blob, creds); err != nil {
			log.Printf("⚠️  Persisted credentials are malformed, starting fresh: %v", err)
			creds = nil
		}
	}

	if creds == nil {
		creds, err = NewCredentials()
		if err != nil {
			return nil, fmt.Errorf("failed to generate credentials: %w", err)
		}
	}

	return &State{
		store: store,
		creds: creds,
		keys:  &KeyAccessor{store: store},
	}, nil
}

func (s *State) Credentials() *Credentials {
	return s.creds
}

func (s *State) Keys() *KeyAccessor {
	return s.keys
}

// ApplyCredentials replaces the in-memory identity credentials with the
// engine's updated view. The caller is expected to follow up with
// SaveCredentials.
func (s *State) ApplyCredentials(blob []byte) error {
	creds := &Credentials{}
	if err := json.Unmarshal(blob, creds); err != nil {
		return fmt.Errorf("malformed credential update: %w", err)
	}
	s.creds = creds
	return nil
}

// SaveCredentials persists the identity credentials under their fixed key.
func (s *State) SaveCredentials(ctx context.Context) error {
	blob, err := json.Marshal(s.creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return s.store.Write(ctx, constants.CredentialsKey, blob)
}

// KeyAccessor reads and writes per-category signal keys under composite
// "{category}-{id}" keys. Each key is independent; batches fan out
// concurrently and are not atomic.
type KeyAccessor struct {
	store credstore.StoreInterface
}

// Get fetches the records for every id in the category. Absent ids map to a
// nil value. App-state-sync keys are rehydrated into their typed form before
// being returned.
func (k *KeyAccessor) Get(ctx context.Context, category string, ids []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			key := category + "-" + id
			blob, err := k.store.Read(ctx, key)
			if err != nil {
				log.Printf("⚠️  Error reading auth key %q: %v", key, err)
				blob = nil
			}

			var value json.RawMessage
			if len(blob) > 0 {
				value = blob
				if category == constants.AppStateSyncKeyCategory {
					typed, err := ParseAppStateSyncKey(blob)
					if err != nil {
						log.Printf("⚠️  Dropping unreadable %s %q: %v", category, id, err)
						value = nil
					} else {
						value, _ = json.Marshal(typed)
					}
				}
			}

			mu.Lock()
			out[id] = value
			mu.Unlock()
		}(id)
	}

	wg.Wait()
	return out, nil
}

// Set applies a batch of key updates: a nil (or JSON null) leaf deletes the
// composite key, anything else writes it. Leaves run concurrently; partial
// failures are logged and left in place, each key is recoverable on the next
// fetch.
func (k *KeyAccessor) Set(ctx context.Context, updates map[string]map[string]json.RawMessage) error {
	var wg sync.WaitGroup

	for category, entries := range updates {
		for id, value := range entries {
			wg.Add(1)
			go func(key string, value json.RawMessage) {
				defer wg.Done()

				if len(value) == 0 || string(value) == "null" {
					if err := k.store.Delete(ctx, key); err != nil {
						log.Printf("⚠️  Error removing auth key %q: %v", key, err)
					}
					return
				}
				if err := k.store.Write(ctx, key, value); err != nil {
					log.Printf("⚠️  Error writing auth key %q: %v", key, err)
				}
			}(category+"-"+id, value)
		}
	}

	wg.Wait()
	return nil
}
