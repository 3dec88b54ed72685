package proto

import "fmt"

// DecodeError reports a frame that failed schema validation. No partial
// Message is ever produced alongside one.
type DecodeError struct {
	Tag    string // wire tag, empty when the envelope itself is broken
	Field  string // offending field, empty for envelope-level faults
	Reason string
}

func (e *DecodeError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("decode %s: field %s: %s", e.Tag, e.Field, e.Reason)
	case e.Tag != "":
		return fmt.Sprintf("decode %s: %s", e.Tag, e.Reason)
	default:
		return "decode: " + e.Reason
	}
}
