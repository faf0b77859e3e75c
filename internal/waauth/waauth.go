// Package waauth encodes and decodes the opaque authState blob a Session
// persists between process restarts. The WhatsApp client library keeps a
// device's identity as a bundle of raw key material (noise key, identity
// key pair, signed prekey, registration id, the adv secret) plus its bound
// JID; this package gives that bundle a documented, versioned, JSON-safe
// shape instead of leaving it as ad hoc field access against the live
// client's device store.
package waauth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// CurrentVersion is bumped whenever the snapshot's field set changes in a
// way that is not purely additive.
const CurrentVersion = 1

// TaggedBytes wraps a binary field so it survives a JSON round-trip.
// Tag documents what Data holds (e.g. "noise-key-pub", "identity-key-priv") so a
// snapshot is self-describing if ever inspected outside this package.
type TaggedBytes struct {
	Tag  string `json:"tag"`
	Data []byte `json:"data"`
}

func tag(name string, data []byte) TaggedBytes {
	return TaggedBytes{Tag: name, Data: data}
}

// MarshalJSON encodes Data as base64 under the tag name, rather than the
// default JSON byte-slice encoding, so the envelope is readable as
// {"tag":"noise-key-pub","data":"<base64>"}.
func (t TaggedBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Tag  string `json:"tag"`
		Data string `json:"data"`
	}{
		Tag:  t.Tag,
		Data: base64.StdEncoding.EncodeToString(t.Data),
	})
}

func (t *TaggedBytes) UnmarshalJSON(b []byte) error {
	var aux struct {
		Tag  string `json:"tag"`
		Data string `json:"data"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(aux.Data)
	if err != nil {
		return fmt.Errorf("waauth: decoding tagged bytes %q: %w", aux.Tag, err)
	}
	t.Tag = aux.Tag
	t.Data = data
	return nil
}

// AuthStateSnapshot is the full device credential bundle needed to resume a
// whatsmeow session without rescanning a QR code. Every binary field from
// the client library's device store is wrapped as TaggedBytes; everything
// else is a plain scalar.
type AuthStateSnapshot struct {
	Version          int         `json:"version"`
	JID              string      `json:"jid"`
	RegistrationID   uint32      `json:"registration_id"`
	NoiseKeyPub      TaggedBytes `json:"noise_key_pub"`
	NoiseKeyPriv     TaggedBytes `json:"noise_key_priv"`
	IdentityKeyPub   TaggedBytes `json:"identity_key_pub"`
	IdentityKeyPriv  TaggedBytes `json:"identity_key_priv"`
	SignedPreKeyID   uint32      `json:"signed_prekey_id"`
	SignedPreKeyPub  TaggedBytes `json:"signed_prekey_pub"`
	SignedPreKeyPriv TaggedBytes `json:"signed_prekey_priv"`
	SignedPreKeySig  TaggedBytes `json:"signed_prekey_sig"`
	AdvSecretKey     TaggedBytes `json:"adv_secret_key"`
	Platform         string      `json:"platform,omitempty"`
	PushName         string      `json:"push_name,omitempty"`
	BusinessName     string      `json:"business_name,omitempty"`
}

// Builder accumulates key material from the live client's device store and
// produces a snapshot. Kept separate from the client package so this file
// has no whatsmeow import and can be unit tested in isolation.
type Builder struct {
	snap AuthStateSnapshot
}

func NewBuilder() *Builder {
	return &Builder{snap: AuthStateSnapshot{Version: CurrentVersion}}
}

func (b *Builder) JID(jid string) *Builder {
	b.snap.JID = jid
	return b
}

func (b *Builder) RegistrationID(id uint32) *Builder {
	b.snap.RegistrationID = id
	return b
}

func (b *Builder) NoiseKey(pub, priv []byte) *Builder {
	b.snap.NoiseKeyPub = tag("noise-key-pub", pub)
	b.snap.NoiseKeyPriv = tag("noise-key-priv", priv)
	return b
}

func (b *Builder) IdentityKey(pub, priv []byte) *Builder {
	b.snap.IdentityKeyPub = tag("identity-key-pub", pub)
	b.snap.IdentityKeyPriv = tag("identity-key-priv", priv)
	return b
}

func (b *Builder) SignedPreKey(id uint32, pub, priv, sig []byte) *Builder {
	b.snap.SignedPreKeyID = id
	b.snap.SignedPreKeyPub = tag("signed-prekey-pub", pub)
	b.snap.SignedPreKeyPriv = tag("signed-prekey-priv", priv)
	b.snap.SignedPreKeySig = tag("signed-prekey-sig", sig)
	return b
}

func (b *Builder) AdvSecretKey(key []byte) *Builder {
	b.snap.AdvSecretKey = tag("adv-secret-key", key)
	return b
}

func (b *Builder) DeviceMeta(platform, pushName, businessName string) *Builder {
	b.snap.Platform = platform
	b.snap.PushName = pushName
	b.snap.BusinessName = businessName
	return b
}

func (b *Builder) Build() AuthStateSnapshot {
	return b.snap
}

// Encode serializes a snapshot to the blob stored in Session.AuthState.
func Encode(snap AuthStateSnapshot) ([]byte, error) {
	if snap.Version == 0 {
		snap.Version = CurrentVersion
	}
	return json.Marshal(snap)
}

// Decode parses a blob previously written by Encode. A nil or empty blob
// is not an error - it means no prior credentials, i.e. a fresh pairing.
func Decode(blob []byte) (*AuthStateSnapshot, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var snap AuthStateSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("waauth: decoding auth state: %w", err)
	}
	if snap.Version > CurrentVersion {
		return nil, fmt.Errorf("waauth: auth state version %d is newer than supported version %d", snap.Version, CurrentVersion)
	}
	return &snap, nil
}
