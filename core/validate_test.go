package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestValidator(policy Policy, clock Clock) *Validator {
	if clock == nil {
		clock = UnixNow
	}
	return NewValidatorWithClock(policy, clock, zap.NewNop().Sugar())
}

// signEvent fills pubkey, id and sig so the event passes every check.
func signEvent(t *testing.T, event *Event, priv *btcec.PrivateKey) {
	t.Helper()
	event.PubKey = hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
	recomputeID(t, event)
	sig, err := schnorr.Sign(priv, mustDigest(t, event))
	require.NoError(t, err)
	event.Sig = hex.EncodeToString(sig.Serialize())
}

func recomputeID(t *testing.T, event *Event) {
	t.Helper()
	event.ID = hex.EncodeToString(mustDigest(t, event))
}

func mustDigest(t *testing.T, event *Event) []byte {
	t.Helper()
	canonical, err := event.Canonical()
	require.NoError(t, err)
	digest := sha256.Sum256(canonical)
	return digest[:]
}

func signedEvent(t *testing.T) (Event, *btcec.PrivateKey) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	event := Event{
		CreatedAt: 1612650459,
		Kind:      1,
		Tags:      [][]string{{"e", "foo"}, {"p", "bar", "ws://example.com"}},
		Content:   "hello world",
	}
	signEvent(t, &event, priv)
	return event, priv
}

func TestValidateAccepts(t *testing.T) {
	event, _ := signedEvent(t)
	v := newTestValidator(Policy{}, nil)
	assert.NoError(t, v.Validate(&event))
}

func TestValidateDigestMismatch(t *testing.T) {
	event, _ := signedEvent(t)
	event.ID = strings.Repeat("a", 64)
	v := newTestValidator(Policy{}, nil)
	assert.ErrorIs(t, v.Validate(&event), ErrDigestMismatch)
}

func TestValidateDigestCaseSensitive(t *testing.T) {
	// The hex digest comparison is case-sensitive; an uppercased id is a
	// different string even though it decodes to the same bytes.
	event, _ := signedEvent(t)
	event.ID = strings.ToUpper(event.ID)
	v := newTestValidator(Policy{}, nil)
	assert.ErrorIs(t, v.Validate(&event), ErrDigestMismatch)
}

func TestValidateTamperedFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Event)
	}{
		{"content", func(e *Event) { e.Content = "tampered" }},
		{"created_at", func(e *Event) { e.CreatedAt++ }},
		{"kind", func(e *Event) { e.Kind++ }},
		{"tag", func(e *Event) { e.Tags[0][1] = "evil" }},
		{"added tag", func(e *Event) { e.Tags = append(e.Tags, []string{"e", "extra"}) }},
	}
	v := newTestValidator(Policy{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, _ := signedEvent(t)
			tt.mutate(&event)
			assert.ErrorIs(t, v.Validate(&event), ErrDigestMismatch)
		})
	}
}

func TestValidateTamperedPubkey(t *testing.T) {
	// Swapping in another key and fixing up the id leaves the digest valid
	// but the signature no longer verifies.
	event, _ := signedEvent(t)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	event.PubKey = hex.EncodeToString(schnorr.SerializePubKey(other.PubKey()))
	recomputeID(t, &event)

	v := newTestValidator(Policy{}, nil)
	assert.ErrorIs(t, v.Validate(&event), ErrBadSignature)
}

func TestValidateMalformedCryptoFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Event)
	}{
		{"sig not hex", func(e *Event) { e.Sig = "zzzz" }},
		{"sig too short", func(e *Event) { e.Sig = "abcd" }},
		{"sig wrong length", func(e *Event) { e.Sig = strings.Repeat("ab", 32) }},
		{"sig garbage", func(e *Event) { e.Sig = strings.Repeat("ff", 64) }},
		{"sig empty", func(e *Event) { e.Sig = "" }},
	}
	v := newTestValidator(Policy{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, _ := signedEvent(t)
			tt.mutate(&event)
			err := v.Validate(&event)
			assert.ErrorIs(t, err, ErrBadSignature)
		})
	}
}

func TestValidateMalformedPubkey(t *testing.T) {
	tests := []struct {
		name   string
		pubkey string
	}{
		{"not hex", "not-hex-at-all"},
		{"too short", "abcd"},
		{"wrong length", strings.Repeat("ab", 16)},
		{"not on curve", strings.Repeat("ff", 32)},
		{"empty", ""},
	}
	v := newTestValidator(Policy{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, _ := signedEvent(t)
			event.PubKey = tt.pubkey
			recomputeID(t, &event)
			err := v.Validate(&event)
			assert.ErrorIs(t, err, ErrBadSignature)
		})
	}
}

func TestValidateLineSeparatorContent(t *testing.T) {
	// Producers emit U+2028/U+2029 as raw UTF-8 and sign over those bytes.
	// The digest is computed here independently of Canonical, over the exact
	// producer-side byte sequence, so validation only passes if Canonical
	// reproduces it byte for byte.
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubkey := hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))

	event := Event{
		PubKey:    pubkey,
		CreatedAt: 1612650459,
		Kind:      1,
		Tags:      [][]string{{"e", "x y"}},
		Content:   "line separated paragraph",
	}
	producerBytes := "[0,\"" + pubkey + "\",1612650459,1," +
		"[[\"e\",\"x y\"]],\"line separated paragraph\"]"
	digest := sha256.Sum256([]byte(producerBytes))
	event.ID = hex.EncodeToString(digest[:])
	sig, err := schnorr.Sign(priv, digest[:])
	require.NoError(t, err)
	event.Sig = hex.EncodeToString(sig.Serialize())

	v := newTestValidator(Policy{}, nil)
	assert.NoError(t, v.Validate(&event))
}

func TestValidateCanonicalizationFailure(t *testing.T) {
	event, _ := signedEvent(t)
	event.Content = "\xff\xfe"
	v := newTestValidator(Policy{}, nil)
	assert.ErrorIs(t, v.Validate(&event), ErrCanonicalization)
}

func TestValidateFutureTimestamp(t *testing.T) {
	const now = uint64(1_600_000_000)
	allowance := int64(30)
	policy := Policy{RejectFutureSeconds: &allowance}
	clock := func() uint64 { return now }

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	makeEvent := func(createdAt uint64) Event {
		event := Event{CreatedAt: createdAt, Kind: 1, Tags: [][]string{}, Content: "x"}
		signEvent(t, &event, priv)
		return event
	}

	v := newTestValidator(policy, clock)

	tests := []struct {
		name      string
		createdAt uint64
		wantErr   error
	}{
		{"in the past", now - 100, nil},
		{"exactly now", now, nil},
		{"at the allowance boundary", now + 30, nil},
		{"one past the boundary", now + 31, ErrFutureTimestamp},
		{"far future", now + 100_000, ErrFutureTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := makeEvent(tt.createdAt)
			err := v.Validate(&event)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateNoFutureLimit(t *testing.T) {
	// With no allowance configured no timestamp ever fails the policy check.
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	event := Event{CreatedAt: 1<<62 + 1, Kind: 1, Tags: [][]string{}, Content: "x"}
	signEvent(t, &event, priv)

	v := newTestValidator(Policy{}, func() uint64 { return 0 })
	assert.NoError(t, v.Validate(&event))
}

func TestValidateZeroAllowance(t *testing.T) {
	const now = uint64(1_600_000_000)
	zero := int64(0)
	v := newTestValidator(Policy{RejectFutureSeconds: &zero}, func() uint64 { return now })

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	event := Event{CreatedAt: now + 1, Kind: 1, Tags: [][]string{}, Content: "x"}
	signEvent(t, &event, priv)
	assert.ErrorIs(t, v.Validate(&event), ErrFutureTimestamp)

	event = Event{CreatedAt: now, Kind: 1, Tags: [][]string{}, Content: "x"}
	signEvent(t, &event, priv)
	assert.NoError(t, v.Validate(&event))
}

func TestValidateConcurrent(t *testing.T) {
	// One validator, many goroutines, shared pubkey cache.
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	v := newTestValidator(Policy{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				event := Event{
					CreatedAt: uint64(1_600_000_000 + n),
					Kind:      uint64(j),
					Tags:      [][]string{},
					Content:   "concurrent",
				}
				signEvent(t, &event, priv)
				assert.NoError(t, v.Validate(&event))

				bad := event
				bad.Content = "tampered"
				assert.Error(t, v.Validate(&bad))
			}
		}(i)
	}
	wg.Wait()
}

func TestUnixNow(t *testing.T) {
	now := UnixNow()
	assert.InDelta(t, uint64(time.Now().Unix()), now, 2)
}

func TestRejectReason(t *testing.T) {
	assert.Equal(t, "decode", RejectReason(ErrDecode))
	assert.Equal(t, "unknown_command", RejectReason(ErrUnknownCommand))
	assert.Equal(t, "future_timestamp", RejectReason(ErrFutureTimestamp))
	assert.Equal(t, "canonicalization", RejectReason(ErrCanonicalization))
	assert.Equal(t, "digest_mismatch", RejectReason(ErrDigestMismatch))
	assert.Equal(t, "bad_signature", RejectReason(ErrBadSignature))
	assert.Equal(t, "unknown", RejectReason(assert.AnError))
}
