// Package core defines the event domain model and the validation trust boundary.
//
// The core package provides:
//   - The Event type with its fixed on-wire field set
//   - Envelope decoding for raw peer messages
//   - Canonical serialization of an event's signable fields
//   - The Validator, which checks digest integrity and schnorr authenticity
//   - Tag query helpers used by downstream matching logic
//
// Every downstream consumer (storage, subscription matching, relaying) relies
// on this package having already rejected malformed or forged events. All
// failures on adversarial input are typed errors from the closed set in
// errors.go; nothing in this package panics on peer-supplied data.
package core
