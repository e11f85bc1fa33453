package core

import "errors"

// Every failure while processing a peer message maps onto this closed set.
// Callers treating untrusted peers should collapse everything except
// ErrUnknownCommand into a uniform reject; the distinct values exist for
// logging, metrics and tests, not for leaking an oracle back to the peer.
var (
	// ErrDecode marks input that is not well-formed per the wire schema.
	ErrDecode = errors.New("envelope decode failed")
	// ErrUnknownCommand marks a well-formed envelope whose command tag is not
	// the expected literal. Signals a protocol mismatch, not a bad event.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrFutureTimestamp marks an event created further in the future than the
	// configured allowance.
	ErrFutureTimestamp = errors.New("event timestamp too far in the future")
	// ErrCanonicalization marks an event whose signable fields cannot be
	// serialized deterministically.
	ErrCanonicalization = errors.New("event could not be canonicalized")
	// ErrDigestMismatch marks an event whose claimed id does not equal the
	// computed digest of its canonical form.
	ErrDigestMismatch = errors.New("event id does not match digest")
	// ErrBadSignature marks a signature that fails verification, including
	// malformed hex and wrong-length or off-curve keys and signatures.
	ErrBadSignature = errors.New("event signature verification failed")
)

// RejectReason maps a validation error onto a short stable label used in
// metrics and logs.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, ErrFutureTimestamp):
		return "future_timestamp"
	case errors.Is(err, ErrCanonicalization):
		return "canonicalization"
	case errors.Is(err, ErrDigestMismatch):
		return "digest_mismatch"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	default:
		return "unknown"
	}
}
