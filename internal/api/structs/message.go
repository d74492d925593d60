package structs

import (
	"bytes"
	"encoding/json"
)

// Presence distinguishes a field that was never sent from one sent empty.
type Presence int

const (
	Absent Presence = iota
	Empty
	NonEmpty
)

// OptionalString is a JSON string field that remembers whether it was present.
// A missing field and an explicit null both decode as Absent.
type OptionalString struct {
	Presence Presence
	Value    string
}

// NewOptionalString wraps a value that is present, possibly empty.
func NewOptionalString(value string) OptionalString {
	if value == "" {
		return OptionalString{Presence: Empty}
	}
	return OptionalString{Presence: NonEmpty, Value: value}
}

// Present reports whether the field carried a string, including "".
func (o OptionalString) Present() bool {
	return o.Presence != Absent
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = OptionalString{Presence: Absent}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = NewOptionalString(s)
	return nil
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Present() {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// MessageBody is the payload of every POST /message, between any two participants.
type MessageBody struct {
	Message OptionalString `json:"message"`
}

// SendMessageBody asks a user to send a message to another user through a fresh circuit.
type SendMessageBody struct {
	Message           OptionalString `json:"message"`
	DestinationUserID *int           `json:"destinationUserId"`
}

// ErrorResponse is the body of every 4xx/5xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is returned by a relay after handling a layer.
type StatusResponse struct {
	Status  string  `json:"status"`
	Message *string `json:"message,omitempty"`
}

// Result wraps a diagnostic value; a nil value is rendered as null.
type Result[T any] struct {
	Result *T `json:"result"`
}
