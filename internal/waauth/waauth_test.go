package waauth_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wa-gateway/internal/waauth"
)

func TestTaggedBytesJSONRoundTrip(t *testing.T) {
	t.Run("preserves tag and data", func(t *testing.T) {
		orig := waauth.TaggedBytes{Tag: "noise-key-pub", Data: []byte{1, 2, 3, 4}}

		raw, err := json.Marshal(orig)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"tag":"noise-key-pub"`)

		var got waauth.TaggedBytes
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, orig.Tag, got.Tag)
		assert.Equal(t, orig.Data, got.Data)
	})

	t.Run("round-trips empty data", func(t *testing.T) {
		orig := waauth.TaggedBytes{Tag: "empty"}

		raw, err := json.Marshal(orig)
		require.NoError(t, err)

		var got waauth.TaggedBytes
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "empty", got.Tag)
		assert.Empty(t, got.Data)
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		var got waauth.TaggedBytes
		err := json.Unmarshal([]byte(`{"tag":"x","data":"not-valid-base64!!"}`), &got)
		assert.Error(t, err)
	})
}

func buildSnapshot() waauth.AuthStateSnapshot {
	return waauth.NewBuilder().
		JID("15551234567:1@s.whatsapp.net").
		RegistrationID(42).
		NoiseKey([]byte("noise-pub"), []byte("noise-priv")).
		IdentityKey([]byte("id-pub"), []byte("id-priv")).
		SignedPreKey(7, []byte("spk-pub"), []byte("spk-priv"), []byte("spk-sig")).
		AdvSecretKey([]byte("adv-secret")).
		DeviceMeta("android", "Acme Co", "Acme Business").
		Build()
}

func TestBuilderProducesAPopulatedSnapshot(t *testing.T) {
	snap := buildSnapshot()

	assert.Equal(t, waauth.CurrentVersion, snap.Version)
	assert.Equal(t, "15551234567:1@s.whatsapp.net", snap.JID)
	assert.Equal(t, uint32(42), snap.RegistrationID)
	assert.Equal(t, []byte("noise-pub"), snap.NoiseKeyPub.Data)
	assert.Equal(t, []byte("noise-priv"), snap.NoiseKeyPriv.Data)
	assert.Equal(t, []byte("id-pub"), snap.IdentityKeyPub.Data)
	assert.Equal(t, []byte("id-priv"), snap.IdentityKeyPriv.Data)
	assert.Equal(t, uint32(7), snap.SignedPreKeyID)
	assert.Equal(t, []byte("spk-pub"), snap.SignedPreKeyPub.Data)
	assert.Equal(t, []byte("spk-priv"), snap.SignedPreKeyPriv.Data)
	assert.Equal(t, []byte("spk-sig"), snap.SignedPreKeySig.Data)
	assert.Equal(t, []byte("adv-secret"), snap.AdvSecretKey.Data)
	assert.Equal(t, "android", snap.Platform)
	assert.Equal(t, "Acme Co", snap.PushName)
	assert.Equal(t, "Acme Business", snap.BusinessName)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	snap := buildSnapshot()

	blob, err := waauth.Encode(snap)
	require.NoError(t, err)

	got, err := waauth.Decode(blob)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap.JID, got.JID)
	assert.Equal(t, snap.RegistrationID, got.RegistrationID)
	assert.Equal(t, snap.NoiseKeyPub.Data, got.NoiseKeyPub.Data)
	assert.Equal(t, snap.NoiseKeyPriv.Data, got.NoiseKeyPriv.Data)
	assert.Equal(t, snap.SignedPreKeyID, got.SignedPreKeyID)
}

func TestEncodeFillsInCurrentVersionWhenUnset(t *testing.T) {
	snap := waauth.AuthStateSnapshot{JID: "15551234567:1@s.whatsapp.net"}

	blob, err := waauth.Encode(snap)
	require.NoError(t, err)

	got, err := waauth.Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, waauth.CurrentVersion, got.Version)
}

func TestDecodeEmptyBlobIsAFreshPairingNotAnError(t *testing.T) {
	got, err := waauth.Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = waauth.Decode([]byte{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := waauth.Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestDecodeRejectsANewerVersionThanSupported(t *testing.T) {
	raw, err := json.Marshal(waauth.AuthStateSnapshot{Version: waauth.CurrentVersion + 1})
	require.NoError(t, err)

	_, err = waauth.Decode(raw)
	assert.Error(t, err)
}
