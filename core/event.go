package core

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Event represents a signed, content-addressed message received from a relay peer.
// The field set and on-wire names are fixed protocol contract; CreatedAt and Kind
// are unsigned seconds-since-epoch and an opaque application event type.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt uint64     `json:"created_at"`
	Kind      uint64     `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// IDPrefix returns a short event identifier suitable for logging. The id is
// peer-supplied and need not be hex, so the cut happens at a rune boundary.
func (e *Event) IDPrefix() string {
	count := 0
	for i := range e.ID {
		if count == 8 {
			return e.ID[:i]
		}
		count++
	}
	return e.ID
}

// Canonical serializes the signable subset of the event into the exact byte
// sequence that is hashed and signed:
//
//	[0,<pubkey>,<created_at>,<kind>,<tags>,<content>]
//
// Compact JSON, no whitespace, integers as bare unsigned decimals. The leading 0
// is a fixed discriminant occupying the id position. Any divergence here breaks
// signature verification for every conforming peer.
func (e *Event) Canonical() ([]byte, error) {
	if !utf8.ValidString(e.PubKey) || !utf8.ValidString(e.Content) {
		return nil, fmt.Errorf("%w: invalid UTF-8 in string field", ErrCanonicalization)
	}
	tags := e.Tags
	if tags == nil {
		tags = [][]string{}
	}
	for _, tag := range tags {
		for _, el := range tag {
			if !utf8.ValidString(el) {
				return nil, fmt.Errorf("%w: invalid UTF-8 in tag element", ErrCanonicalization)
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString("[0,")
	writeCanonicalString(&buf, e.PubKey)
	buf.WriteByte(',')
	buf.WriteString(strconv.FormatUint(e.CreatedAt, 10))
	buf.WriteByte(',')
	buf.WriteString(strconv.FormatUint(e.Kind, 10))
	buf.WriteByte(',')
	buf.WriteByte('[')
	for i, tag := range tags {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		for j, el := range tag {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(&buf, el)
		}
		buf.WriteByte(']')
	}
	buf.WriteString("],")
	writeCanonicalString(&buf, e.Content)
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

const hexDigits = "0123456789abcdef"

// writeCanonicalString writes s as a JSON string with producer-side escaping:
// quote, backslash and control characters below 0x20 only. Everything else,
// including U+2028 and U+2029, passes through as raw UTF-8. encoding/json
// cannot be used here: it escapes the line separators unconditionally, which
// changes the digest of any legitimately signed event containing them.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			buf.WriteString(`\"`)
		case c == '\\':
			buf.WriteString(`\\`)
		case c >= 0x20:
			buf.WriteByte(c)
		case c == '\b':
			buf.WriteString(`\b`)
		case c == '\t':
			buf.WriteString(`\t`)
		case c == '\n':
			buf.WriteString(`\n`)
		case c == '\f':
			buf.WriteString(`\f`)
		case c == '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[c>>4])
			buf.WriteByte(hexDigits[c&0xf])
		}
	}
	buf.WriteByte('"')
}

// EventTags returns the referenced event ids from "e" tags. Tags with a
// different discriminant or fewer than two elements are skipped.
func (e *Event) EventTags() []string {
	return e.tagValues("e")
}

// PubkeyTags returns the referenced pubkeys from "p" tags.
func (e *Event) PubkeyTags() []string {
	return e.tagValues("p")
}

func (e *Event) tagValues(name string) []string {
	values := []string{}
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			values = append(values, tag[1])
		}
	}
	return values
}

// EventTagMatch reports whether eventID is referenced by an "e" tag.
func (e *Event) EventTagMatch(eventID string) bool {
	for _, id := range e.EventTags() {
		if id == eventID {
			return true
		}
	}
	return false
}

// PubkeyTagMatch reports whether pubkey is referenced by a "p" tag.
func (e *Event) PubkeyTagMatch(pubkey string) bool {
	for _, pk := range e.PubkeyTags() {
		if pk == pubkey {
			return true
		}
	}
	return false
}
