package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode marks a stream payload that is neither an acknowledgment nor a
// well-formed record batch.
var ErrDecode = errors.New("malformed stream payload")

// ackMarker identifies the server's plain-text subscription acknowledgment.
const ackMarker = "successfully subscribed"

// MessageKind tags the variant carried by a Message.
type MessageKind int

const (
	Malformed MessageKind = iota
	Acknowledgment
	RecordBatch
)

func (k MessageKind) String() string {
	switch k {
	case Acknowledgment:
		return "ack"
	case RecordBatch:
		return "batch"
	default:
		return "malformed"
	}
}

// Message is a decoded stream payload.
// Records is set only for RecordBatch, Err only for Malformed.
type Message struct {
	Kind    MessageKind
	Records []TransactionChangeRecord
	Err     error
}

// Decode classifies a raw payload. It never fails: anything that is not an
// acknowledgment or a JSON array of records comes back as Malformed with an
// error wrapping ErrDecode.
func Decode(payload []byte) Message {
	if bytes.Contains(payload, []byte(ackMarker)) {
		return Message{Kind: Acknowledgment}
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return Message{Kind: Malformed, Err: fmt.Errorf("%w: expected a JSON array", ErrDecode)}
	}

	var records []TransactionChangeRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return Message{Kind: Malformed, Err: fmt.Errorf("%w: %w", ErrDecode, err)}
	}

	for i, r := range records {
		if r.Account == "" || r.TransactionID == "" {
			return Message{Kind: Malformed, Err: fmt.Errorf("%w: record %d is missing account or transactionId", ErrDecode, i)}
		}
	}

	return Message{Kind: RecordBatch, Records: records}
}
