package unicorn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
)

type fieldKind uint8

const (
	fieldPubkey fieldKind = iota
	fieldText
	fieldU8
	fieldBool
	fieldU64
	fieldI64
)

// field is one fixed-width slot of an account layout.
type field struct {
	name  string
	kind  fieldKind
	width int
}

func pubkeyField(name string) field          { return field{name: name, kind: fieldPubkey, width: solana.PublicKeyLength} }
func textField(name string, width int) field { return field{name: name, kind: fieldText, width: width} }
func u8Field(name string) field              { return field{name: name, kind: fieldU8, width: 1} }
func boolField(name string) field            { return field{name: name, kind: fieldBool, width: 1} }
func u64Field(name string) field             { return field{name: name, kind: fieldU64, width: 8} }
func i64Field(name string) field             { return field{name: name, kind: fieldI64, width: 8} }

// layout is the ordered field list of one account type. Offsets are implied
// by order, so the table is the codec.
type layout struct {
	record string
	fields []field
	size   int
}

func newLayout(record string, fields ...field) layout {
	size := 0
	for _, f := range fields {
		size += f.width
	}
	return layout{record: record, fields: fields, size: size}
}

// Size is the total byte length of the record.
func (l layout) Size() int {
	return l.size
}

// Offset returns the byte offset of the named field, or -1.
func (l layout) Offset(name string) int {
	off := 0
	for _, f := range l.fields {
		if f.name == name {
			return off
		}
		off += f.width
	}
	return -1
}

// decode fills dst, one pointer per field in declared order. Bytes past
// Size are ignored.
func (l layout) decode(raw []byte, dst []any) error {
	op := "decode " + l.record
	l.checkBinding(dst)
	if len(raw) < l.size {
		return malformed(op, "got %d bytes, need %d", len(raw), l.size)
	}

	off := 0
	for i, f := range l.fields {
		chunk := raw[off : off+f.width]
		off += f.width

		switch v := dst[i].(type) {
		case *solana.PublicKey:
			*v = solana.PublicKeyFromBytes(chunk)
		case *string:
			text := bytes.TrimRight(chunk, "\x00")
			if !utf8.Valid(text) {
				return malformed(op, "field %s is not valid UTF-8", f.name)
			}
			*v = string(text)
		case *uint8:
			*v = chunk[0]
		case *bool:
			*v = chunk[0] != 0
		case *uint64:
			*v = binary.LittleEndian.Uint64(chunk)
		case *int64:
			*v = int64(binary.LittleEndian.Uint64(chunk))
		}
	}
	return nil
}

// encode is the inverse of decode. Text wider than its slot is rejected.
func (l layout) encode(src []any) ([]byte, error) {
	l.checkBinding(src)
	out := make([]byte, l.size)

	off := 0
	for i, f := range l.fields {
		chunk := out[off : off+f.width]
		off += f.width

		switch v := src[i].(type) {
		case *solana.PublicKey:
			copy(chunk, v[:])
		case *string:
			if reason := textProblem(*v, f.width); reason != "" {
				return nil, invalidInput("encode "+l.record, "%s %s", f.name, reason)
			}
			copy(chunk, *v)
		case *uint8:
			chunk[0] = *v
		case *bool:
			if *v {
				chunk[0] = 1
			}
		case *uint64:
			binary.LittleEndian.PutUint64(chunk, *v)
		case *int64:
			binary.LittleEndian.PutUint64(chunk, uint64(*v))
		}
	}
	return out, nil
}

// textProblem describes why s cannot occupy a NUL-padded slot of width
// bytes and read back unchanged, or returns "".
func textProblem(s string, width int) string {
	switch {
	case len(s) > width:
		return fmt.Sprintf("is %d bytes, max %d", len(s), width)
	case !utf8.ValidString(s):
		return "is not valid UTF-8"
	case strings.IndexByte(s, 0) >= 0:
		return "contains a NUL byte"
	}
	return ""
}

// checkBinding panics when a record's bind() drifts from its layout; that is
// a programming error, not bad input.
func (l layout) checkBinding(ptrs []any) {
	if len(ptrs) != len(l.fields) {
		panic(fmt.Sprintf("unicorn: %s binds %d fields, layout has %d", l.record, len(ptrs), len(l.fields)))
	}
	for i, f := range l.fields {
		ok := false
		switch ptrs[i].(type) {
		case *solana.PublicKey:
			ok = f.kind == fieldPubkey
		case *string:
			ok = f.kind == fieldText
		case *uint8:
			ok = f.kind == fieldU8
		case *bool:
			ok = f.kind == fieldBool
		case *uint64:
			ok = f.kind == fieldU64
		case *int64:
			ok = f.kind == fieldI64
		}
		if !ok {
			panic(fmt.Sprintf("unicorn: %s.%s bound to %T", l.record, f.name, ptrs[i]))
		}
	}
}
