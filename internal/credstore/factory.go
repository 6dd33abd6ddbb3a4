package credstore

import (
	"encoding/hex"
	"log"

	"golang.org/x/crypto/chacha20poly1305"

	"wagate/internal/utils"
)

const (
	EnvRedisHost     = "WAGATE_REDIS_HOST"
	EnvRedisPort     = "WAGATE_REDIS_PORT"
	EnvRedisUser     = "WAGATE_REDIS_USERNAME"
	EnvRedisPassword = "WAGATE_REDIS_PASSWORD"
	EnvDBPath        = "WAGATE_DB_PATH"
	EnvStoreKey      = "WAGATE_STORE_KEY"
)

// NewStore picks a persistence backend from the environment: Redis when
// WAGATE_REDIS_HOST is set, SQLite when WAGATE_DB_PATH is set, in-memory
// otherwise. A backend that fails to open degrades to memory so the gateway
// can still pair; the session just will not survive a restart.
func NewStore() (StoreInterface, error) {
	store := pickBackend()

	if hexKey := utils.GetEnv(EnvStoreKey, ""); hexKey != "" {
		key, err := hex.DecodeString(hexKey)
		if err != nil || len(key) != chacha20poly1305.KeySize {
			log.Printf("⚠️  WAGATE_STORE_KEY must be %d hex-encoded bytes, storing credentials unsealed", chacha20poly1305.KeySize)
		} else {
			log.Println("🔒 Credential blobs sealed at rest")
			store = NewSealedStore(store, key)
		}
	}

	return store, nil
}

func pickBackend() StoreInterface {
	redisHost := utils.GetEnv(EnvRedisHost, "")

	if redisHost != "" {
		redisPort := utils.GetEnv(EnvRedisPort, "6379")
		redisUser := utils.GetEnv(EnvRedisUser, "")
		redisPassword := utils.GetEnv(EnvRedisPassword, "")

		store, err := NewRedisStore(redisHost, redisPort, redisUser, redisPassword)
		if err != nil {
			log.Printf("⚠️  Redis connection failed: %v", err)
			log.Println("💾 Falling back to in-memory credential store")
			return NewMemoryStore()
		}
		log.Printf("💾 Using Redis credential store: %s:%s", redisHost, redisPort)
		return store
	}

	if dbPath := utils.GetEnv(EnvDBPath, ""); dbPath != "" {
		store, err := NewSQLiteStore(dbPath)
		if err != nil {
			log.Printf("⚠️  SQLite open failed: %v", err)
			log.Println("💾 Falling back to in-memory credential store")
			return NewMemoryStore()
		}
		log.Printf("💾 Using SQLite credential store: %s", dbPath)
		return store
	}

	log.Println("💾 Using in-memory credential store")
	return NewMemoryStore()
}
