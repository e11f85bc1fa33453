// Package nostrtest provides signed event fixtures for tests.
package nostrtest

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"nostrelay/core"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"
)

// Signer holds a throwaway schnorr keypair for producing validly signed events.
type Signer struct {
	priv *btcec.PrivateKey

	// PubKeyHex is the x-only public key in the event pubkey encoding.
	PubKeyHex string
}

// NewSigner generates a fresh keypair.
func NewSigner(t *testing.T) *Signer {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return &Signer{
		priv:      priv,
		PubKeyHex: hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())),
	}
}

// Sign sets the event's pubkey, recomputes its id from the canonical form and
// signs the digest, leaving a fully valid event.
func (s *Signer) Sign(t *testing.T, event *core.Event) {
	t.Helper()
	event.PubKey = s.PubKeyHex

	canonical, err := event.Canonical()
	require.NoError(t, err)
	digest := sha256.Sum256(canonical)
	event.ID = hex.EncodeToString(digest[:])

	sig, err := schnorr.Sign(s.priv, digest[:])
	require.NoError(t, err)
	event.Sig = hex.EncodeToString(sig.Serialize())
}

// SignedEvent builds a validly signed event with the given signable fields.
func (s *Signer) SignedEvent(t *testing.T, createdAt, kind uint64, tags [][]string, content string) core.Event {
	t.Helper()
	event := core.Event{
		CreatedAt: createdAt,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	s.Sign(t, &event)
	return event
}
