package authstate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wagate/internal/constants"
	"wagate/internal/credstore"
)

func TestLoadFreshCredentials(t *testing.T) {
	store := credstore.NewMemoryStore()

	state, err := Load(context.Background(), store)
	require.NoError(t, err)

	creds := state.Credentials()
	require.NotNil(t, creds)
	assert.False(t, creds.Registered)
	assert.Len(t, creds.NoiseKey.Private, 32)
	assert.Len(t, creds.NoiseKey.Public, 32)
	assert.Len(t, creds.SignedIdentityKey.Private, 32)
	assert.NotEmpty(t, creds.AdvSecretKey)
	assert.GreaterOrEqual(t, creds.RegistrationID, uint32(1))
	assert.LessOrEqual(t, creds.RegistrationID, uint32(constants.MaxRegistrationID))
}

func TestSaveAndReload(t *testing.T) {
	store := credstore.NewMemoryStore()
	ctx := context.Background()

	first, err := Load(ctx, store)
	require.NoError(t, err)
	require.NoError(t, first.SaveCredentials(ctx))

	second, err := Load(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, first.Credentials().RegistrationID, second.Credentials().RegistrationID)
	assert.Equal(t, first.Credentials().NoiseKey, second.Credentials().NoiseKey)
}

func TestLoadMalformedCredentialsStartsFresh(t *testing.T) {
	store := credstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, constants.CredentialsKey, []byte("{not json")))

	state, err := Load(ctx, store)
	require.NoError(t, err)
	assert.NotNil(t, state.Credentials())
	assert.False(t, state.Credentials().Registered)
}

func TestApplyCredentials(t *testing.T) {
	store := credstore.NewMemoryStore()
	ctx := context.Background()

	state, err := Load(ctx, store)
	require.NoError(t, err)

	update, err := NewCredentials()
	require.NoError(t, err)
	update.Registered = true
	blob, err := json.Marshal(update)
	require.NoError(t, err)

	require.NoError(t, state.ApplyCredentials(blob))
	assert.True(t, state.Credentials().Registered)
	assert.Equal(t, update.RegistrationID, state.Credentials().RegistrationID)

	assert.Error(t, state.ApplyCredentials([]byte("{broken")))
}

func TestKeyAccessorGetAbsent(t *testing.T) {
	store := credstore.NewMemoryStore()
	state, err := Load(context.Background(), store)
	require.NoError(t, err)

	got, err := state.Keys().Get(context.Background(), "pre-key", []string{"1", "2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got["1"])
	assert.Nil(t, got["2"])
}

func TestKeyAccessorSetAndGet(t *testing.T) {
	store := credstore.NewMemoryStore()
	ctx := context.Background()
	state, err := Load(ctx, store)
	require.NoError(t, err)
	keys := state.Keys()

	err = keys.Set(ctx, map[string]map[string]json.RawMessage{
		"pre-key": {
			"1": json.RawMessage(`{"private":"YQ=="}`),
			"2": json.RawMessage(`{"private":"Yg=="}`),
		},
		"session": {
			"923001234567.0": json.RawMessage(`{"record":"Yw=="}`),
		},
	})
	require.NoError(t, err)

	got, err := keys.Get(ctx, "pre-key", []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"private":"YQ=="}`, string(got["1"]))
	assert.JSONEq(t, `{"private":"Yg=="}`, string(got["2"]))
	assert.Nil(t, got["3"])

	// Keys live under composite "{category}-{id}" entries.
	raw, err := store.Read(ctx, "session-923001234567.0")
	require.NoError(t, err)
	assert.NotNil(t, raw)
}

func TestKeyAccessorSetNullDeletes(t *testing.T) {
	store := credstore.NewMemoryStore()
	ctx := context.Background()
	state, err := Load(ctx, store)
	require.NoError(t, err)
	keys := state.Keys()

	require.NoError(t, keys.Set(ctx, map[string]map[string]json.RawMessage{
		"pre-key": {"1": json.RawMessage(`{"private":"YQ=="}`)},
	}))
	require.NoError(t, keys.Set(ctx, map[string]map[string]json.RawMessage{
		"pre-key": {"1": json.RawMessage(`null`)},
	}))

	got, err := keys.Get(ctx, "pre-key", []string{"1"})
	require.NoError(t, err)
	assert.Nil(t, got["1"])
}

func TestAppStateSyncKeyRehydration(t *testing.T) {
	store := credstore.NewMemoryStore()
	ctx := context.Background()
	state, err := Load(ctx, store)
	require.NoError(t, err)
	keys := state.Keys()

	stored := AppStateSyncKeyData{
		KeyData: []byte{1, 2, 3, 4},
		Fingerprint: AppStateSyncKeyFingerprint{
			RawID:         99,
			CurrentIndex:  1,
			DeviceIndexes: []uint32{0, 1},
		},
		Timestamp: 1756684800,
	}
	blob, err := json.Marshal(stored)
	require.NoError(t, err)

	require.NoError(t, keys.Set(ctx, map[string]map[string]json.RawMessage{
		constants.AppStateSyncKeyCategory: {"AAAA": blob},
	}))

	got, err := keys.Get(ctx, constants.AppStateSyncKeyCategory, []string{"AAAA"})
	require.NoError(t, err)
	require.NotNil(t, got["AAAA"])

	var rehydrated AppStateSyncKeyData
	require.NoError(t, json.Unmarshal(got["AAAA"], &rehydrated))
	assert.Equal(t, stored.KeyData, rehydrated.KeyData)
	assert.Equal(t, stored.Fingerprint, rehydrated.Fingerprint)
	assert.Equal(t, stored.Timestamp, rehydrated.Timestamp)
}

func TestAppStateSyncKeyMalformedDropped(t *testing.T) {
	store := credstore.NewMemoryStore()
	ctx := context.Background()
	state, err := Load(ctx, store)
	require.NoError(t, err)

	key := constants.AppStateSyncKeyCategory + "-BBBB"
	require.NoError(t, store.Write(ctx, key, []byte("{broken")))

	got, err := state.Keys().Get(ctx, constants.AppStateSyncKeyCategory, []string{"BBBB"})
	require.NoError(t, err)
	assert.Nil(t, got["BBBB"])
}
