package envelope

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Envelope is the message exchanged with open portal pages over /ws.
type Envelope struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	ReplyTo   string          `json:"reply_to,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorPayload   `json:"error,omitempty"`
	Timestamp int64           `json:"ts"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func New(action string) Envelope {
	return Envelope{
		ID:        generateID(),
		Action:    action,
		Timestamp: time.Now().UnixMilli(),
	}
}

func NewEvent(action string, data any) (Envelope, error) {
	e := New(action)
	if data == nil {
		return e, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return e, err
	}
	e.Data = raw
	return e, nil
}

func NewReply(original Envelope, data any) (Envelope, error) {
	e, err := NewEvent(original.Action+".result", data)
	e.ReplyTo = original.ID
	return e, err
}

func NewError(original Envelope, code int, message string) Envelope {
	action := "error"
	if original.Action != "" {
		action = original.Action + ".error"
	}
	e := New(action)
	e.ReplyTo = original.ID
	e.Error = &ErrorPayload{Code: code, Message: message}
	return e
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

func ParseData[T any](e Envelope) (T, error) {
	var v T
	if len(e.Data) == 0 {
		return v, nil
	}
	err := json.Unmarshal(e.Data, &v)
	return v, err
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
