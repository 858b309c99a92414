// Package wire implements the device wire protocol: one Message per
// newline-terminated JSON line on a TCP byte stream. No length prefix,
// no compression, no encryption.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ruhul03/crisis-connect/pkg/types"
)

// DecodeError reports a malformed line. It is always recovered locally:
// the read loop drops the line, logs it, and keeps reading.
type DecodeError struct {
	Line  string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed message line: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Encode serializes a message to a single line of JSON without the trailing
// newline; the connection writer appends it. Encoded output must never
// contain an embedded newline since the peer frames on them.
func Encode(msg *types.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	// json.Marshal escapes newlines inside strings, so a raw \n here would
	// indicate a framing bug rather than hostile content.
	if bytes.ContainsRune(data, '\n') {
		return nil, fmt.Errorf("encode message %s: %w", msg.ID, ErrEmbeddedNewline)
	}
	return data, nil
}

// Decode parses one line into a Message. Empty lines and lines that are not
// a well-formed JSON object fail with *DecodeError.
func Decode(line []byte) (*types.Message, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, &DecodeError{Line: string(line), Cause: ErrEmptyLine}
	}

	var msg types.Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, &DecodeError{Line: string(line), Cause: err}
	}
	return &msg, nil
}
