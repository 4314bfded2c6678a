package htsmsg

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire-format field sizes, mirroring the HTSP grammar:
//
//	Message := uint32 Length ; Body[Length]
//	Body    := Field*
//	Field   := uint8 Type ; uint8 NameLen ; uint32 ValueLen ; Name[NameLen] ; Value[ValueLen]
const (
	lengthSize  = 4
	typeSize    = 1
	nameLenSize = 1
	valLenSize  = 4
	headerSize  = typeSize + nameLenSize + valLenSize
)

// Sentinel errors. Every decode failure wraps one of these so callers can
// classify with errors.Is without parsing strings.
var (
	ErrTruncated     = errors.New("htsmsg: truncated frame")
	ErrLengthMismatch = errors.New("htsmsg: length prefix mismatch")
	ErrInvalidType   = errors.New("htsmsg: invalid field type")
	ErrEmptyMapKey   = errors.New("htsmsg: empty map key")
	ErrUnsupported   = errors.New("htsmsg: unsupported value")
	ErrRange         = errors.New("htsmsg: integer out of range")
)

// Marshal encodes m as a complete HTSMSG message: a 4-byte big-endian length
// prefix followed by the encoded body.
func Marshal(m *Map) ([]byte, error) {
	body, err := encodeMapBody(m)
	if err != nil {
		return nil, err
	}
	out := make([]byte, lengthSize+len(body))
	binary.BigEndian.PutUint32(out[:lengthSize], uint32(len(body)))
	copy(out[lengthSize:], body)
	return out, nil
}

// Unmarshal decodes a complete framed message (length prefix + body) into a
// Map. A length prefix that disagrees with the remaining byte count is a
// framing error.
func Unmarshal(framed []byte) (*Map, error) {
	if len(framed) < lengthSize {
		return nil, fmt.Errorf("%w: message shorter than length prefix", ErrTruncated)
	}
	size := binary.BigEndian.Uint32(framed[:lengthSize])
	body := framed[lengthSize:]
	if uint32(len(body)) != size {
		return nil, fmt.Errorf("%w: header says %d, have %d", ErrLengthMismatch, size, len(body))
	}
	return decodeMapBody(body)
}

// encodeMapBody encodes every field of m, without the top-level length
// prefix (used both for the outer message and nested Map fields).
func encodeMapBody(m *Map) ([]byte, error) {
	var out []byte
	for _, name := range m.Keys() {
		v, _ := m.Get(name)
		field, err := encodeField(v, name)
		if err != nil {
			return nil, err
		}
		out = append(out, field...)
	}
	return out, nil
}

func encodeListBody(l *List) ([]byte, error) {
	var out []byte
	for _, v := range l.Items() {
		field, err := encodeField(v, "")
		if err != nil {
			return nil, err
		}
		out = append(out, field...)
	}
	return out, nil
}

// encodeField encodes one Field: type, name length, value length, name,
// value. name is omitted from the wire (NameLen=0) when it is empty, which
// is how List entries are encoded.
func encodeField(v Value, name string) ([]byte, error) {
	var payload []byte
	var err error

	switch v.Kind {
	case KindMap:
		payload, err = encodeMapBody(v.Map)
	case KindList:
		payload, err = encodeListBody(v.List)
	case KindS64:
		payload, err = encodeS64(v.I64)
	case KindStr:
		payload = []byte(v.Str)
	case KindBin:
		payload = v.Bin
	default:
		return nil, fmt.Errorf("%w: kind %v", ErrUnsupported, v.Kind)
	}
	if err != nil {
		return nil, err
	}

	header := make([]byte, headerSize, headerSize+len(name)+len(payload))
	header[0] = byte(v.Kind)
	header[1] = byte(len(name))
	binary.BigEndian.PutUint32(header[2:6], uint32(len(payload)))
	header = append(header, name...)
	header = append(header, payload...)
	return header, nil
}

// encodeS64 packs v as the minimal little-endian-on-the-wire encoding the
// HTSP grammar expects: zero encodes as a single zero byte; any other value
// is packed big-endian into 8 bytes, leading zero bytes are stripped, and
// the remainder is byte-reversed. -1 is encoded via the all-ones 64-bit
// sentinel before the same transform is applied.
//
// Values are carried as Go int64, so the representable range is
// [-1, math.MaxInt64] rather than the full [-1, 2^64-2] the wire grammar
// permits; HTSP never puts a field (seq, id, timestamp, offset) outside
// int64 range in practice.
func encodeS64(v int64) ([]byte, error) {
	if v < -1 {
		return nil, fmt.Errorf("%w: %d", ErrRange, v)
	}
	u := uint64(v)
	if v == -1 {
		u = 0xFFFFFFFFFFFFFFFF
	}
	if u == 0 {
		return []byte{0}, nil
	}
	var be [8]byte
	binary.BigEndian.PutUint64(be[:], u)
	i := 0
	for i < len(be) && be[i] == 0 {
		i++
	}
	trimmed := be[i:]
	out := make([]byte, len(trimmed))
	for j, b := range trimmed {
		out[len(trimmed)-1-j] = b
	}
	return out, nil
}

// decodeS64 reverses encodeS64: the little-endian wire bytes are reversed
// into the low-order end of an 8-byte big-endian buffer (the missing
// high-order bytes stay zero), then read as unsigned; the all-ones pattern
// decodes to -1.
func decodeS64(wire []byte) (int64, error) {
	if len(wire) > 8 {
		return 0, fmt.Errorf("%w: s64 field is %d bytes", ErrRange, len(wire))
	}
	var be [8]byte
	for j, b := range wire {
		be[7-j] = b
	}
	u := binary.BigEndian.Uint64(be[:])
	if u == 0xFFFFFFFFFFFFFFFF {
		return -1, nil
	}
	return int64(u), nil
}

// decodeMapBody decodes a sequence of named Fields into a Map.
func decodeMapBody(body []byte) (*Map, error) {
	m := NewMap()
	pos := 0
	for len(body)-pos >= headerSize {
		typ := body[pos]
		nameLen := int(body[pos+1])
		valLen := int(binary.BigEndian.Uint32(body[pos+2 : pos+6]))
		fieldEnd := pos + headerSize + nameLen + valLen
		if fieldEnd > len(body) {
			return nil, fmt.Errorf("%w: field extends past body", ErrTruncated)
		}
		if nameLen < 1 {
			return nil, fmt.Errorf("%w", ErrEmptyMapKey)
		}
		name := string(body[pos+headerSize : pos+headerSize+nameLen])
		valStart := pos + headerSize + nameLen
		value, err := decodeValue(Kind(typ), body[valStart:fieldEnd])
		if err != nil {
			return nil, err
		}
		m.Set(name, value)
		pos = fieldEnd
	}
	if pos != len(body) {
		return nil, fmt.Errorf("%w: trailing bytes after last field", ErrTruncated)
	}
	return m, nil
}

// decodeListBody decodes a sequence of unnamed (or tolerated-but-discarded
// named) Fields into a List.
func decodeListBody(body []byte) (*List, error) {
	l := NewList()
	pos := 0
	for len(body)-pos >= headerSize {
		typ := body[pos]
		nameLen := int(body[pos+1])
		valLen := int(binary.BigEndian.Uint32(body[pos+2 : pos+6]))
		fieldEnd := pos + headerSize + nameLen + valLen
		if fieldEnd > len(body) {
			return nil, fmt.Errorf("%w: field extends past body", ErrTruncated)
		}
		valStart := pos + headerSize + nameLen
		value, err := decodeValue(Kind(typ), body[valStart:fieldEnd])
		if err != nil {
			return nil, err
		}
		l.Append(value)
		pos = fieldEnd
	}
	if pos != len(body) {
		return nil, fmt.Errorf("%w: trailing bytes after last field", ErrTruncated)
	}
	return l, nil
}

func decodeValue(typ Kind, raw []byte) (Value, error) {
	switch typ {
	case KindBin:
		cp := make([]byte, len(raw))
		copy(cp, raw)
		return BinValue(cp), nil
	case KindList:
		l, err := decodeListBody(raw)
		if err != nil {
			return Value{}, err
		}
		return ListValue(l), nil
	case KindS64:
		v, err := decodeS64(raw)
		if err != nil {
			return Value{}, err
		}
		return Int64Value(v), nil
	case KindStr:
		return StrValue(string(raw)), nil
	case KindMap:
		nested, err := decodeMapBody(raw)
		if err != nil {
			return Value{}, err
		}
		return MapValue(nested), nil
	default:
		return Value{}, fmt.Errorf("%w: %d", ErrInvalidType, typ)
	}
}
