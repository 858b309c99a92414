package wire

import "errors"

// Codec errors.
var (
	ErrEmptyLine       = errors.New("empty line")
	ErrEmbeddedNewline = errors.New("encoded message contains embedded newline")
)
