package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Text is a string field that tolerates any JSON value. Non-strings decode to "".
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = ""
		return nil
	}
	*t = Text(s)
	return nil
}

// Trim returns the value with surrounding whitespace removed.
func (t Text) Trim() string {
	return strings.TrimSpace(string(t))
}

// Number is a finite float with a validity bit. An invalid Number is "unknown",
// which is distinct from zero.
type Number struct {
	value float64
	valid bool
}

// Num returns a valid Number, or an invalid one when v is NaN or infinite.
func Num(v float64) Number {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}
	}
	return Number{value: v, valid: true}
}

// Float returns the value and whether it is finite.
func (n Number) Float() (float64, bool) {
	return n.value, n.valid
}

// Valid reports whether the number holds a finite value.
func (n Number) Valid() bool {
	return n.valid
}

// Or returns the value, or def when the number is not valid.
func (n Number) Or(def float64) float64 {
	if !n.valid {
		return def
	}
	return n.value
}

// IsZero lets omitzero drop unknown numbers.
func (n Number) IsZero() bool {
	return !n.valid
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.value)
}

// UnmarshalJSON accepts JSON numbers and numeric strings. Anything else
// leaves the number invalid.
func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = Num(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*n = Num(f)
	}
	return nil
}

// Flag is a tri-state boolean: unset, false or true. Only JSON booleans set it.
type Flag struct {
	value bool
	set   bool
}

// Bool returns a set Flag.
func Bool(v bool) Flag {
	return Flag{value: v, set: true}
}

// IsSet reports whether the flag carried a boolean.
func (f Flag) IsSet() bool {
	return f.set
}

// True reports whether the flag is set and true.
func (f Flag) True() bool {
	return f.set && f.value
}

// IsZero lets omitzero drop unset flags.
func (f Flag) IsZero() bool {
	return !f.set
}

// MarshalJSON implements json.Marshaler.
func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = Flag{}
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = Bool(v)
	}
	return nil
}

// List is a JSON array with opaque elements. A nil List means "not an
// array"; an empty non-nil List is an empty array.
type List []json.RawMessage

// Strings builds a List of JSON strings.
func Strings(values ...string) List {
	l := make(List, 0, len(values))
	for _, v := range values {
		l = append(l, raw(v))
	}
	return l
}

// Values builds a List from arbitrary JSON-encodable values.
func Values(values ...any) List {
	l := make(List, 0, len(values))
	for _, v := range values {
		l = append(l, raw(v))
	}
	return l
}

// IsZero lets omitzero drop lists that were never arrays.
func (l List) IsZero() bool {
	return l == nil
}

// CountObjects returns how many elements are JSON objects.
func (l List) CountObjects() int {
	n := 0
	for _, el := range l {
		if isObject(el) {
			n++
		}
	}
	return n
}

// Clone copies the list. A nil list stays nil.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

// UnmarshalJSON implements json.Unmarshaler. Non-arrays decode to nil.
func (l *List) UnmarshalJSON(b []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil {
		*l = nil
		return nil
	}
	*l = List(elems)
	return nil
}

// Object is a JSON object with opaque values. A nil Object means "not an object".
type Object map[string]json.RawMessage

// IsZero lets omitzero drop values that were never objects.
func (o Object) IsZero() bool {
	return o == nil
}

// Has reports whether key is present.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Text returns the string at key, or "" when missing or not a string.
func (o Object) Text(key string) string {
	var t Text
	if v, ok := o[key]; ok {
		_ = t.UnmarshalJSON(v)
	}
	return string(t)
}

// Number returns the number at key.
func (o Object) Number(key string) Number {
	var n Number
	if v, ok := o[key]; ok {
		_ = n.UnmarshalJSON(v)
	}
	return n
}

// Object returns the nested object at key, or nil when it is not an object.
func (o Object) Object(key string) Object {
	var nested Object
	if v, ok := o[key]; ok {
		_ = nested.UnmarshalJSON(v)
	}
	return nested
}

// With returns a copy of o with key set to the JSON encoding of v.
func (o Object) With(key string, v any) Object {
	out := o.Clone()
	if out == nil {
		out = Object{}
	}
	out[key] = raw(v)
	return out
}

// Clone copies the object. A nil object stays nil.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// UnmarshalJSON implements json.Unmarshaler. Non-objects decode to nil.
func (o *Object) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		*o = nil
		return nil
	}
	*o = Object(m)
	return nil
}

// StarSource is the normalised origin of the review-derived star.
type StarSource string

// Star sources. StarSourceNone encodes as JSON null.
const (
	StarSourceNone   StarSource = ""
	StarSourceManual StarSource = "manual"
	StarSourceAuto   StarSource = "auto"
)

// NormalizeStarSource maps arbitrary input onto manual, auto or none.
func NormalizeStarSource(s string) StarSource {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual":
		return StarSourceManual
	case "auto":
		return StarSourceAuto
	default:
		return StarSourceNone
	}
}

// MarshalJSON implements json.Marshaler.
func (s StarSource) MarshalJSON() ([]byte, error) {
	if s == StarSourceNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON normalises on decode.
func (s *StarSource) UnmarshalJSON(b []byte) error {
	var t Text
	_ = t.UnmarshalJSON(b)
	*s = NormalizeStarSource(string(t))
	return nil
}

func raw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

func isObject(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}
