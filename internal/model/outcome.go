package model

import (
	"bytes"
	"fmt"
	"net/http"
)

// ErrorMarker is the typed failure an extractor returns in place of its payload.
type ErrorMarker struct {
	ErrorStatus  int    `json:"errorStatus"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (m *ErrorMarker) Error() string {
	return fmt.Sprintf("%s: %s", m.ErrorCode, m.ErrorMessage)
}

// Forbidden reports a robots.txt restriction.
func (m *ErrorMarker) Forbidden() bool {
	return m.ErrorStatus == http.StatusForbidden
}

func NewErrorMarker(status int, message string) *ErrorMarker {
	return &ErrorMarker{
		ErrorStatus:  status,
		ErrorCode:    fmt.Sprintf("%d %s", status, http.StatusText(status)),
		ErrorMessage: message,
	}
}

func ForbiddenMarker(message string) *ErrorMarker {
	return NewErrorMarker(http.StatusForbidden, message)
}

func InternalMarker(message string) *ErrorMarker {
	return NewErrorMarker(http.StatusInternalServerError, message)
}

// Outcome holds the settled result of one extractor: a payload, an error marker, or nothing
// when the extractor never ran. It encodes as the payload, the marker, or null respectively.
type Outcome[T any] struct {
	value *T
	err   *ErrorMarker
}

func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{value: &v}
}

func Fail[T any](m *ErrorMarker) Outcome[T] {
	if m == nil {
		m = InternalMarker("unspecified failure")
	}
	return Outcome[T]{err: m}
}

// Value returns the payload and whether the extractor succeeded.
func (o Outcome[T]) Value() (T, bool) {
	if o.value == nil {
		var zero T
		return zero, false
	}
	return *o.value, true
}

// Err returns the error marker, or nil when the outcome is not a failure.
func (o Outcome[T]) Err() *ErrorMarker {
	return o.err
}

func (o Outcome[T]) Succeeded() bool { return o.value != nil }
func (o Outcome[T]) Failed() bool    { return o.err != nil }
func (o Outcome[T]) Settled() bool   { return o.value != nil || o.err != nil }

func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	switch {
	case o.err != nil:
		return json.Marshal(o.err)
	case o.value != nil:
		return json.Marshal(o.value)
	default:
		return []byte("null"), nil
	}
}

func (o *Outcome[T]) UnmarshalJSON(data []byte) error {
	*o = Outcome[T]{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '{' {
		var probe struct {
			ErrorStatus *int `json:"errorStatus"`
		}
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return err
		}
		if probe.ErrorStatus != nil {
			var marker ErrorMarker
			if err := json.Unmarshal(trimmed, &marker); err != nil {
				return err
			}
			o.err = &marker
			return nil
		}
	}
	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	o.value = &v
	return nil
}
