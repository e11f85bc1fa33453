package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	schnorrPubKeyLen    = 32
	schnorrSignatureLen = 64

	// pubkeyCacheSize bounds the memoized parsed-pubkey cache. Relays see the
	// same authors repeatedly, so parse each x-only key once.
	pubkeyCacheSize = 4096
)

// Policy holds the resolved validation settings. A nil RejectFutureSeconds
// means no limit on how far in the future an event timestamp may be.
type Policy struct {
	RejectFutureSeconds *int64
}

// Clock returns wall-clock seconds since epoch.
type Clock func() uint64

// UnixNow is the process clock. A reading before the epoch is treated as zero.
func UnixNow() uint64 {
	now := time.Now().Unix()
	if now < 0 {
		return 0
	}
	return uint64(now)
}

// Validator checks events for structural and cryptographic validity. It holds
// no per-event state and is safe for concurrent use.
type Validator struct {
	policy  Policy
	clock   Clock
	pubkeys *lru.Cache[string, *btcec.PublicKey]
	logger  *zap.SugaredLogger
}

// NewValidator creates a validator using the process clock.
func NewValidator(policy Policy, logger *zap.SugaredLogger) *Validator {
	return NewValidatorWithClock(policy, UnixNow, logger)
}

// NewValidatorWithClock creates a validator with an explicit clock.
func NewValidatorWithClock(policy Policy, clock Clock, logger *zap.SugaredLogger) *Validator {
	cache, err := lru.New[string, *btcec.PublicKey](pubkeyCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		logger.Fatalf("Failed to create pubkey cache: %v", err)
	}
	return &Validator{
		policy:  policy,
		clock:   clock,
		pubkeys: cache,
		logger:  logger,
	}
}

// Validate checks a decoded event and returns nil only when every check passes.
// Checks run in a fixed order, short-circuiting on the first failure: timestamp
// policy, canonicalization, digest comparison, signature verification. The
// returned error wraps exactly one of the sentinel reject errors; no input can
// make this panic.
func (v *Validator) Validate(event *Event) error {
	if err := v.checkTimestamp(event); err != nil {
		return err
	}

	canonical, err := event.Canonical()
	if err != nil {
		v.logger.Infow("Event could not be canonicalized", "event", event.IDPrefix())
		return err
	}

	digest := sha256.Sum256(canonical)
	if event.ID != hex.EncodeToString(digest[:]) {
		return fmt.Errorf("%w: event %s", ErrDigestMismatch, event.IDPrefix())
	}

	return v.verifySignature(event, digest[:])
}

// checkTimestamp rejects events too far in the future. The clock is read once
// per validation, not cached.
func (v *Validator) checkTimestamp(event *Event) error {
	allowance := v.policy.RejectFutureSeconds
	if allowance == nil {
		return nil
	}
	allowanceSec := *allowance
	if allowanceSec < 0 {
		allowanceSec = 0
	}
	now := v.clock()
	if now+uint64(allowanceSec) < event.CreatedAt {
		delta := event.CreatedAt - now
		v.logger.Debugw("Event is too far in the future, rejecting",
			"event", event.IDPrefix(),
			"delta_seconds", delta)
		return fmt.Errorf("%w: %d seconds ahead", ErrFutureTimestamp, delta)
	}
	return nil
}

// verifySignature checks the BIP-340 schnorr signature over the canonical
// digest. Malformed hex, wrong lengths and off-curve points are ordinary
// verification failures, never a crash.
func (v *Validator) verifySignature(event *Event, digest []byte) error {
	pubkey, err := v.parsePubKey(event.PubKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	sigBytes, err := hex.DecodeString(event.Sig)
	if err != nil {
		return fmt.Errorf("%w: sig is not valid hex", ErrBadSignature)
	}
	if len(sigBytes) != schnorrSignatureLen {
		return fmt.Errorf("%w: sig is %d bytes, want %d", ErrBadSignature, len(sigBytes), schnorrSignatureLen)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	if !sig.Verify(digest, pubkey) {
		return fmt.Errorf("%w: event %s", ErrBadSignature, event.IDPrefix())
	}
	return nil
}

func (v *Validator) parsePubKey(pubkeyHex string) (*btcec.PublicKey, error) {
	if cached, ok := v.pubkeys.Get(pubkeyHex); ok {
		return cached, nil
	}
	pkBytes, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return nil, fmt.Errorf("pubkey is not valid hex")
	}
	if len(pkBytes) != schnorrPubKeyLen {
		return nil, fmt.Errorf("pubkey is %d bytes, want %d", len(pkBytes), schnorrPubKeyLen)
	}
	pubkey, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return nil, err
	}
	v.pubkeys.Add(pubkeyHex, pubkey)
	return pubkey, nil
}
