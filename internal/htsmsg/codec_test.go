package htsmsg

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	inner := NewMap()
	inner.SetStr("a", "b")

	list := NewList()
	list.Append(StrValue("x"))
	list.Append(Int64Value(7))

	m := NewMap()
	m.SetStr("method", "hello")
	m.SetInt64("seq", 0)
	m.SetInt64("neg", -1)
	m.SetInt64("big", 0x7FFFFFFF)
	m.SetStr("empty", "")
	m.SetBin("emptybin", []byte{})
	m.SetStr("utf8", "héllo wörld 日本語")
	m.Set("nested", MapValue(inner))
	m.Set("list", ListValue(list))

	wire, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	out, err := Unmarshal(wire)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if v, _ := out.GetStr("method"); v != "hello" {
		t.Fatalf("method = %q", v)
	}
	if v, _ := out.GetInt64("seq"); v != 0 {
		t.Fatalf("seq = %d", v)
	}
	if v, _ := out.GetInt64("neg"); v != -1 {
		t.Fatalf("neg = %d", v)
	}
	if v, _ := out.GetInt64("big"); v != 0x7FFFFFFF {
		t.Fatalf("big = %d", v)
	}
	if v, ok := out.GetStr("empty"); !ok || v != "" {
		t.Fatalf("empty = %q ok=%v", v, ok)
	}
	if v, ok := out.GetBin("emptybin"); !ok || len(v) != 0 {
		t.Fatalf("emptybin = %v ok=%v", v, ok)
	}
	if v, _ := out.GetStr("utf8"); v != "héllo wörld 日本語" {
		t.Fatalf("utf8 = %q", v)
	}
	nested, ok := out.GetMap("nested")
	if !ok {
		t.Fatalf("nested map missing")
	}
	if v, _ := nested.GetStr("a"); v != "b" {
		t.Fatalf("nested.a = %q", v)
	}
	outList, ok := out.GetList("list")
	if !ok || outList.Len() != 2 {
		t.Fatalf("list missing or wrong length: ok=%v len=%d", ok, outList.Len())
	}
	if outList.At(0).Str != "x" || outList.At(1).I64 != 7 {
		t.Fatalf("list contents mismatch")
	}
}

func TestS64SentinelAndZero(t *testing.T) {
	m := NewMap()
	m.SetInt64("v", -1)
	field, err := encodeField(Int64Value(-1), "v")
	if err != nil {
		t.Fatalf("encodeField: %v", err)
	}
	// header(6) + name "v"(1) + 8-byte value of all-ones.
	wantTail := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(field[len(field)-8:], wantTail) {
		t.Fatalf("encoded -1 tail = % X, want % X", field[len(field)-8:], wantTail)
	}

	wire, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Unmarshal(wire)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v, _ := out.GetInt64("v"); v != -1 {
		t.Fatalf("decoded %d, want -1", v)
	}

	zero := NewMap()
	zero.SetInt64("z", 0)
	zwire, err := Marshal(zero)
	if err != nil {
		t.Fatalf("Marshal zero: %v", err)
	}
	zout, err := Unmarshal(zwire)
	if err != nil {
		t.Fatalf("Unmarshal zero: %v", err)
	}
	if v, _ := zout.GetInt64("z"); v != 0 {
		t.Fatalf("decoded %d, want 0", v)
	}
}

func TestHelloVector(t *testing.T) {
	m := NewMap()
	m.SetStr("method", "hello")
	m.SetInt64("seq", 0)

	wire, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	// body: Str "method"->"hello" (1+1+4 header + 6 name + 5 value = 17B)
	// followed by S64 "seq"->0 (1+1+4 header + 3 name + 1 value = 10B).
	// Total body = 27 bytes.
	if len(wire) != 4+27 {
		t.Fatalf("wire length = %d, want %d", len(wire), 4+27)
	}
	wantPrefix := []byte{0x00, 0x00, 0x00, 0x1B}
	if !bytes.Equal(wire[:4], wantPrefix) {
		t.Fatalf("length prefix = % X, want % X", wire[:4], wantPrefix)
	}
}

func TestZeroValueLengthHeader(t *testing.T) {
	field, err := encodeField(Int64Value(0), "z")
	if err != nil {
		t.Fatalf("encodeField: %v", err)
	}
	// type(1) nameLen(1) valLen(4) name(1) value(1)
	valLen := field[2:6]
	if valLen[0] != 0 || valLen[1] != 0 || valLen[2] != 0 || valLen[3] != 1 {
		t.Fatalf("value length header = % X, want 00 00 00 01", valLen)
	}
	if len(field) != headerSize+1+1 {
		t.Fatalf("field length = %d", len(field))
	}
}

func TestRejectsInvalidType(t *testing.T) {
	body := []byte{0x09, 0x01, 0, 0, 0, 1, 'a', 0x42}
	if _, err := decodeMapBody(body); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("err = %v, want ErrInvalidType", err)
	}
}

func TestRejectsEmptyMapKey(t *testing.T) {
	body := []byte{byte(KindS64), 0x00, 0, 0, 0, 1, 0x01}
	if _, err := decodeMapBody(body); !errors.Is(err, ErrEmptyMapKey) {
		t.Fatalf("err = %v, want ErrEmptyMapKey", err)
	}
}

func TestRejectsTruncatedField(t *testing.T) {
	body := []byte{byte(KindStr), 0x01, 0, 0, 0, 5, 'a'} // declares 5-byte value, has 0
	if _, err := decodeMapBody(body); !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestRejectsOversizedS64(t *testing.T) {
	// name "a", value len 9 -- one byte past the fixed 8-byte S64 width.
	body := []byte{byte(KindS64), 0x01, 0, 0, 0, 9, 'a', 1, 1, 1, 1, 1, 1, 1, 1, 1}
	if _, err := decodeMapBody(body); !errors.Is(err, ErrRange) {
		t.Fatalf("err = %v, want ErrRange", err)
	}
}

func TestUnmarshalLengthMismatch(t *testing.T) {
	m := NewMap()
	m.SetInt64("v", 1)
	wire, _ := Marshal(m)
	binaryLenField := wire[:4]
	corrupted := append(append([]byte{}, binaryLenField...), wire[4:]...)
	corrupted[3]++ // claim one more byte than present
	if _, err := Unmarshal(corrupted); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("err = %v, want ErrLengthMismatch", err)
	}
}

func TestListToleratesNamedField(t *testing.T) {
	// A List field with NameLen>0 is tolerated; the name is discarded.
	body := []byte{byte(KindStr), 0x03, 0, 0, 0, 2, 'f', 'o', 'o', 'h', 'i'}
	l, err := decodeListBody(body)
	if err != nil {
		t.Fatalf("decodeListBody: %v", err)
	}
	if l.Len() != 1 || l.At(0).Str != "hi" {
		t.Fatalf("list = %+v", l.Items())
	}
}
