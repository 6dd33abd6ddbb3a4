package authstate

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"wagate/internal/constants"
	"wagate/internal/crypto"
)

// KeyPair is a serializable X25519 key pair.
type KeyPair struct {
	Private []byte `json:"private"`
	Public  []byte `json:"public"`
}

// Credentials is the identity half of the session state: everything the
// protocol engine needs to resume an authenticated session without a fresh
// pairing challenge.
type Credentials struct {
	NoiseKey          KeyPair `json:"noiseKey"`
	SignedIdentityKey KeyPair `json:"signedIdentityKey"`
	RegistrationID    uint32  `json:"registrationId"`
	AdvSecretKey      string  `json:"advSecretKey"`
	Registered        bool    `json:"registered"`
}

// NewCredentials synthesizes a fresh, unregistered credential set. It is not
// persisted until the engine first reports a credential change.
func NewCredentials() (*Credentials, error) {
	noisePriv, noisePub, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate noise key: %w", err)
	}
	idPriv, idPub, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity key: %w", err)
	}

	var buf [4]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return nil, err
	}
	registrationID := binary.BigEndian.Uint32(buf[:])%constants.MaxRegistrationID + 1

	advSecret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, advSecret); err != nil {
		return nil, err
	}

	return &Credentials{
		NoiseKey:          KeyPair{Private: noisePriv[:], Public: noisePub[:]},
		SignedIdentityKey: KeyPair{Private: idPriv[:], Public: idPub[:]},
		RegistrationID:    registrationID,
		AdvSecretKey:      base64.StdEncoding.EncodeToString(advSecret),
	}, nil
}

// AppStateSyncKeyData is the typed representation the engine requires for
// app-state-sync keys. Returning the raw stored blob for that category breaks
// the engine's internal validation, so reads rehydrate through this type.
type AppStateSyncKeyData struct {
	KeyData     []byte                     `json:"keyData"`
	Fingerprint AppStateSyncKeyFingerprint `json:"fingerprint"`
	Timestamp   int64                      `json:"timestamp"`
}

type AppStateSyncKeyFingerprint struct {
	RawID         uint32   `json:"rawId"`
	CurrentIndex  uint32   `json:"currentIndex"`
	DeviceIndexes []uint32 `json:"deviceIndexes"`
}

// ParseAppStateSyncKey rebuilds the typed key from its stored plain form.
func ParseAppStateSyncKey(blob []byte) (*AppStateSyncKeyData, error) {
	var key AppStateSyncKeyData
	if err := json.Unmarshal(blob, &key); err != nil {
		return nil, fmt.Errorf("malformed app state sync key: %w", err)
	}
	return &key, nil
}
