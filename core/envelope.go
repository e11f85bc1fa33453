package core

import (
	"encoding/json"
	"fmt"
)

// CmdEvent is the command tag a peer uses to submit an event.
const CmdEvent = "EVENT"

// Envelope is the outer structure carrying a command tag and an event payload.
type Envelope struct {
	Cmd   string `json:"cmd"`
	Event Event  `json:"event"`
}

// wireEvent mirrors Event with pointer fields so decoding can tell a missing
// required field apart from a zero value. Tags is the one optional field: absent
// or null decodes to an empty slice. Unknown extra fields are tolerated.
type wireEvent struct {
	ID        *string    `json:"id"`
	PubKey    *string    `json:"pubkey"`
	CreatedAt *uint64    `json:"created_at"`
	Kind      *uint64    `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   *string    `json:"content"`
	Sig       *string    `json:"sig"`
}

func (w *wireEvent) toEvent() (Event, error) {
	switch {
	case w.ID == nil:
		return Event{}, fmt.Errorf("%w: missing field id", ErrDecode)
	case w.PubKey == nil:
		return Event{}, fmt.Errorf("%w: missing field pubkey", ErrDecode)
	case w.CreatedAt == nil:
		return Event{}, fmt.Errorf("%w: missing field created_at", ErrDecode)
	case w.Kind == nil:
		return Event{}, fmt.Errorf("%w: missing field kind", ErrDecode)
	case w.Content == nil:
		return Event{}, fmt.Errorf("%w: missing field content", ErrDecode)
	case w.Sig == nil:
		return Event{}, fmt.Errorf("%w: missing field sig", ErrDecode)
	}
	tags := w.Tags
	if tags == nil {
		tags = [][]string{}
	}
	return Event{
		ID:        *w.ID,
		PubKey:    *w.PubKey,
		CreatedAt: *w.CreatedAt,
		Kind:      *w.Kind,
		Tags:      tags,
		Content:   *w.Content,
		Sig:       *w.Sig,
	}, nil
}

// DecodeEnvelope parses a raw peer message into an Envelope. It returns
// ErrDecode for anything not structurally well-formed and ErrUnknownCommand for
// a well-formed envelope whose command tag is not CmdEvent; the two are distinct
// so callers can answer a protocol mismatch differently from a bad event.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var wire struct {
		Cmd   *string   `json:"cmd"`
		Event wireEvent `json:"event"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if wire.Cmd == nil {
		return nil, fmt.Errorf("%w: missing field cmd", ErrDecode)
	}
	event, err := wire.Event.toEvent()
	if err != nil {
		return nil, err
	}
	if *wire.Cmd != CmdEvent {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, *wire.Cmd)
	}
	return &Envelope{Cmd: *wire.Cmd, Event: event}, nil
}
