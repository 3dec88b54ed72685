package proto

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes a body as one wire frame: a msgpack map carrying
// the tag under "m", the timestamp (unix milliseconds) under "t", and
// the body fields flattened alongside. When no timestamp is supplied
// the current time is stamped; frames never leave without one.
func Encode(body Body, ts ...time.Time) ([]byte, error) {
	when := time.Now()
	if len(ts) > 0 && !ts[0].IsZero() {
		when = ts[0]
	}

	frame := body.fields()
	if frame == nil {
		frame = make(map[string]any, 2)
	}
	frame["m"] = string(body.Tag())
	frame["t"] = when.UnixMilli()

	return msgpack.Marshal(frame)
}

// Decode validates a wire frame against the full schema and returns the
// typed Message. Any unknown tag, missing field, wrong field type, enum
// value outside its domain, or unexpected extra field yields a
// *DecodeError; a partial Message is never returned.
func Decode(data []byte) (Message, error) {
	var m map[string]any
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return Message{}, &DecodeError{Reason: "not a msgpack map: " + err.Error()}
	}

	tv, ok := m["m"]
	if !ok {
		return Message{}, &DecodeError{Reason: "missing tag field"}
	}
	tag, ok := tv.(string)
	if !ok {
		return Message{}, &DecodeError{Reason: "tag is not a string"}
	}

	sc, ok := schemas[Tag(tag)]
	if !ok {
		return Message{}, &DecodeError{Tag: tag, Reason: "unknown tag"}
	}

	tsv, ok := m["t"]
	if !ok {
		return Message{}, &DecodeError{Tag: tag, Field: "t", Reason: "missing required field"}
	}
	ms, ok := asInt64(tsv)
	if !ok {
		return Message{}, &DecodeError{Tag: tag, Field: "t", Reason: "expected integer timestamp"}
	}

	for k := range m {
		if k == "m" || k == "t" {
			continue
		}
		if !contains(sc.fields, k) {
			return Message{}, &DecodeError{Tag: tag, Field: k, Reason: "unexpected field"}
		}
	}

	d := &fieldReader{tag: Tag(tag), m: m}
	body := sc.decode(d)
	if d.err != nil {
		return Message{}, d.err
	}

	return Message{TS: time.UnixMilli(ms), Body: body}, nil
}

// asInt64 accepts whichever integer width msgpack picked on the wire.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case int:
		return int64(n), true
	case uint64:
		if n > 1<<62 {
			return 0, false
		}
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint:
		return int64(n), true
	default:
		return 0, false
	}
}
