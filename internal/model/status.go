package model

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
)

// Status is an observed HTTP status code, or the unknown state reported
// when a probe failed before a response was received.
//
// The zero value is Unknown. Statuses are comparable with ==.
type Status struct {
	code  int
	known bool
}

// Unknown is the status of a failed probe.
var Unknown = Status{}

// Code returns the known status for an HTTP status code.
func Code(code int) Status {
	return Status{code: code, known: true}
}

// Known reports whether the status carries a response code.
func (s Status) Known() bool {
	return s.known
}

// Value returns the status code and whether it is known.
func (s Status) Value() (int, bool) {
	return s.code, s.known
}

// IsOK reports whether the status is exactly 200.
func (s Status) IsOK() bool {
	return s.known && s.code == http.StatusOK
}

func (s Status) String() string {
	if !s.known {
		return "unknown"
	}
	return strconv.Itoa(s.code)
}

// MarshalJSON encodes a known status as a number and Unknown as null.
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.known {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(s.code)), nil
}

// UnmarshalJSON accepts a number or null.
func (s *Status) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Unknown
		return nil
	}

	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	*s = Code(code)
	return nil
}

// Last returns the most recent status in a history and false when the
// history is empty.
func Last(history []Status) (Status, bool) {
	if len(history) == 0 {
		return Unknown, false
	}
	return history[len(history)-1], true
}
