package models

import (
	"encoding/json"
)

// Session is one training session as returned by
// getFullSessionsByDateRange. Every field is optional; accessors treat a
// missing substructure as empty.
type Session struct {
	record
}

// NewSession builds a session from decoded fields. Used by tests and tools
// that synthesise API payloads.
func NewSession(fields map[string]any) (Session, error) {
	r, err := newRecord(fields)
	return Session{record: r}, err
}

// MustSession is NewSession for literals known to be valid.
func MustSession(fields map[string]any) Session {
	s, err := NewSession(fields)
	if err != nil {
		panic(err)
	}
	return s
}

// Details returns the sessionDetails object.
func (s Session) Details() map[string]any {
	return Object(s.Fields(), "sessionDetails")
}

// Players returns the sessionPlayers array.
func (s Session) Players() []map[string]any {
	return Objects(s.Fields(), "sessionPlayers")
}

// Date returns sessionDetails.sessionDate, or "" when absent.
func (s Session) Date() string {
	return String(s.Details(), "sessionDate")
}

// Signature is the canonical identity of a session: its sessionDetails
// object serialised with sorted keys. Two sessions with equal signatures
// are the same session regardless of arrival order.
func (s Session) Signature() string {
	// encoding/json sorts map keys, which makes this canonical.
	raw, err := json.Marshal(s.Details())
	if err != nil {
		return string(s.raw)
	}
	return string(raw)
}
