package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// style controls the byte layout of a key-sorted encoding. Both styles sort
// object keys by code point.
type style struct {
	itemSep   string
	keySep    string
	asciiOnly bool
	numbers   func(float64) (string, error)
}

var (
	// jcsStyle is RFC 8785 canonical JSON.
	jcsStyle = style{itemSep: ",", keySep: ":", numbers: canonicalizeFloat}
	// legacyStyle matches json.dumps(obj, sort_keys=True) with default
	// separators and ensure_ascii, the byte layout of records already signed by
	// earlier issuers.
	legacyStyle = style{itemSep: ", ", keySep: ": ", asciiOnly: true, numbers: legacyFloat}
)

func CanonicalizeJSON(input []byte) ([]byte, error) {
	return canonicalizeJSONStyle(input, jcsStyle)
}

func CanonicalizeAny(v any) ([]byte, error) {
	return canonicalizeAnyStyle(v, jcsStyle)
}

func canonicalizeJSONStyle(input []byte, st style) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := ensureEOF(dec); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := st.write(buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func canonicalizeAnyStyle(v any, st style) ([]byte, error) {
	switch value := v.(type) {
	case nil, bool, string, json.Number, float64, float32, int, int32, int64, uint, uint32, uint64, map[string]any, map[string]string, []any:
		buf := &bytes.Buffer{}
		if err := st.write(buf, value); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case json.RawMessage:
		return canonicalizeJSONStyle([]byte(value), st)
	case []byte:
		return canonicalizeJSONStyle(value, st)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return canonicalizeJSONStyle(b, st)
	}
}

func ensureEOF(dec *json.Decoder) error {
	var extra any
	if err := dec.Decode(&extra); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return errors.New("invalid JSON: trailing data")
}

func (st style) write(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		st.writeString(buf, v)
	case json.Number:
		return st.writeNumber(buf, v.String())
	case float64:
		return st.writeFloat(buf, v)
	case float32:
		return st.writeFloat(buf, float64(v))
	case int:
		return st.writeNumber(buf, strconv.FormatInt(int64(v), 10))
	case int32:
		return st.writeNumber(buf, strconv.FormatInt(int64(v), 10))
	case int64:
		return st.writeNumber(buf, strconv.FormatInt(v, 10))
	case uint:
		return st.writeNumber(buf, strconv.FormatUint(uint64(v), 10))
	case uint32:
		return st.writeNumber(buf, strconv.FormatUint(uint64(v), 10))
	case uint64:
		return st.writeNumber(buf, strconv.FormatUint(v, 10))
	case map[string]string:
		obj := make(map[string]any, len(v))
		for k, s := range v {
			obj[k] = s
		}
		return st.writeObject(buf, obj)
	case map[string]any:
		return st.writeObject(buf, v)
	case []any:
		return st.writeArray(buf, v)
	default:
		return fmt.Errorf("unsupported JSON type %T", value)
	}
	return nil
}

func (st style) writeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(st.itemSep)
		}
		st.writeString(buf, k)
		buf.WriteString(st.keySep)
		if err := st.write(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func (st style) writeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteString(st.itemSep)
		}
		if err := st.write(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func (st style) writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			switch {
			case r < 0x20:
				writeUnicodeEscape(buf, r)
			case st.asciiOnly && r > 0x7e:
				if r > 0xffff {
					hi, lo := utf16.EncodeRune(r)
					writeUnicodeEscape(buf, hi)
					writeUnicodeEscape(buf, lo)
				} else {
					writeUnicodeEscape(buf, r)
				}
			default:
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

func writeUnicodeEscape(buf *bytes.Buffer, r rune) {
	buf.WriteString(`\u`)
	buf.WriteByte(hexLower[(r>>12)&0x0f])
	buf.WriteByte(hexLower[(r>>8)&0x0f])
	buf.WriteByte(hexLower[(r>>4)&0x0f])
	buf.WriteByte(hexLower[r&0x0f])
}

var hexLower = []byte("0123456789abcdef")

func (st style) writeNumber(buf *bytes.Buffer, number string) error {
	if st.asciiOnly && isIntegerLiteral(number) {
		buf.WriteString(number)
		return nil
	}
	f, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return fmt.Errorf("invalid JSON number: %w", err)
	}
	return st.writeFloat(buf, f)
}

func (st style) writeFloat(buf *bytes.Buffer, f float64) error {
	num, err := st.numbers(f)
	if err != nil {
		return err
	}
	buf.WriteString(num)
	return nil
}

func isIntegerLiteral(number string) bool {
	s := strings.TrimPrefix(number, "-")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// legacyFloat renders f the way Python's float repr does.
func legacyFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", errors.New("invalid JSON number")
	}
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0", nil
		}
		return "0.0", nil
	}
	_, exp, err := splitScientific(math.Abs(f))
	if err != nil {
		return "", err
	}
	if exp < -4 || exp >= 16 {
		return strconv.FormatFloat(f, 'e', -1, 64), nil
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, nil
}

func canonicalizeFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", errors.New("invalid JSON number")
	}
	if f == 0 {
		return "0", nil
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = math.Abs(f)
	}

	mantissa, exp, err := splitScientific(f)
	if err != nil {
		return "", err
	}

	digits := strings.ReplaceAll(mantissa, ".", "")

	if exp <= -7 || exp >= 21 {
		if len(digits) == 1 {
			return sign + digits + "e" + strconv.Itoa(exp), nil
		}
		return sign + digits[:1] + "." + digits[1:] + "e" + strconv.Itoa(exp), nil
	}

	point := exp + 1
	if point >= len(digits) {
		return sign + digits + strings.Repeat("0", point-len(digits)), nil
	}
	if point <= 0 {
		return sign + "0." + strings.Repeat("0", -point) + digits, nil
	}
	return sign + digits[:point] + "." + digits[point:], nil
}

func splitScientific(f float64) (string, int, error) {
	s := strconv.FormatFloat(f, 'e', -1, 64)
	parts := strings.SplitN(s, "e", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("invalid float format: %q", s)
	}
	exp, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("invalid float exponent: %w", err)
	}
	return parts[0], exp, nil
}
