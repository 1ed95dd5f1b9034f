package interpreter

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// ObjectType represents the type of runtime values
type ObjectType string

const (
	NUMBER_OBJ     = "NUMBER"
	STRING_OBJ     = "STRING"
	BOOLEAN_OBJ    = "BOOLEAN"
	NULL_OBJ       = "NULL"
	ARRAY_OBJ      = "ARRAY"
	DICTIONARY_OBJ = "DICTIONARY"
)

// Object represents all values in the language. Values are immutable once
// built, so events can hand them to listeners without copying.
type Object interface {
	Type() ObjectType
	Inspect() string
}

var (
	NULL  = &Null{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

// Number is the only numeric type; scripts never distinguish ints.
type Number struct {
	Value float64
}

func (n *Number) Type() ObjectType { return NUMBER_OBJ }
func (n *Number) Inspect() string  { return formatNumber(n.Value) }
func (n *Number) MarshalJSON() ([]byte, error) {
	if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type String struct {
	Value string
}

func (s *String) Type() ObjectType             { return STRING_OBJ }
func (s *String) Inspect() string              { return strconv.Quote(s.Value) }
func (s *String) MarshalJSON() ([]byte, error) { return json.Marshal(s.Value) }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType             { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string              { return strconv.FormatBool(b.Value) }
func (b *Boolean) MarshalJSON() ([]byte, error) { return json.Marshal(b.Value) }

type Null struct{}

func (n *Null) Type() ObjectType             { return NULL_OBJ }
func (n *Null) Inspect() string              { return "null" }
func (n *Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

type Array struct {
	Elements []Object
}

func (a *Array) Type() ObjectType { return ARRAY_OBJ }
func (a *Array) Inspect() string {
	elements := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		elements[i] = e.Inspect()
	}
	return "[" + strings.Join(elements, ", ") + "]"
}
func (a *Array) MarshalJSON() ([]byte, error) {
	if a.Elements == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.Elements)
}

// Dictionary keeps keys in the order the object literal wrote them.
type Dictionary struct {
	Pairs *orderedmap.OrderedMap[string, Object]
}

// NewDictionary creates an empty Dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{Pairs: orderedmap.NewOrderedMap[string, Object]()}
}

func (d *Dictionary) Type() ObjectType { return DICTIONARY_OBJ }
func (d *Dictionary) Inspect() string {
	pairs := make([]string, 0, d.Pairs.Len())
	for el := d.Pairs.Front(); el != nil; el = el.Next() {
		pairs = append(pairs, el.Key+": "+el.Value.Inspect())
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}
func (d *Dictionary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for el := d.Pairs.Front(); el != nil; el = el.Next() {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(el.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(el.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value stored under key.
func (d *Dictionary) Get(key string) (Object, bool) {
	return d.Pairs.Get(key)
}

func nativeBoolToBooleanObject(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

// FromNative converts a literal Go value (string, float64, bool, nil, or
// slices and maps of those) into an Object.
func FromNative(v any) Object {
	switch val := v.(type) {
	case nil:
		return NULL
	case Object:
		return val
	case string:
		return &String{Value: val}
	case float64:
		return &Number{Value: val}
	case int:
		return &Number{Value: float64(val)}
	case bool:
		return nativeBoolToBooleanObject(val)
	case []any:
		arr := &Array{Elements: make([]Object, len(val))}
		for i, e := range val {
			arr.Elements[i] = FromNative(e)
		}
		return arr
	case map[string]any:
		dict := NewDictionary()
		for k, e := range val {
			dict.Pairs.Set(k, FromNative(e))
		}
		return dict
	}
	return NULL
}

// IsTruthy coerces a value to a boolean: null, false, 0, NaN and "" are
// false; everything else, including empty arrays and objects, is true.
func IsTruthy(obj Object) bool {
	switch o := obj.(type) {
	case nil, *Null:
		return false
	case *Boolean:
		return o.Value
	case *Number:
		return o.Value != 0 && !math.IsNaN(o.Value)
	case *String:
		return o.Value != ""
	default:
		return true
	}
}

// Stringify renders a value for string interpolation and display. Strings
// are unquoted and null renders as the empty string.
func Stringify(obj Object) string {
	switch o := obj.(type) {
	case nil, *Null:
		return ""
	case *String:
		return o.Value
	default:
		return o.Inspect()
	}
}

// DeepEquals compares values structurally. Values of different types are
// never equal; arrays compare element-wise and dictionaries by key set and
// values, ignoring key order.
func DeepEquals(a, b Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type() != b.Type() {
		return false
	}

	switch left := a.(type) {
	case *Number:
		return left.Value == b.(*Number).Value
	case *String:
		return left.Value == b.(*String).Value
	case *Boolean:
		return left.Value == b.(*Boolean).Value
	case *Null:
		return true
	case *Array:
		right := b.(*Array)
		if len(left.Elements) != len(right.Elements) {
			return false
		}
		for i := range left.Elements {
			if !DeepEquals(left.Elements[i], right.Elements[i]) {
				return false
			}
		}
		return true
	case *Dictionary:
		right := b.(*Dictionary)
		if left.Pairs.Len() != right.Pairs.Len() {
			return false
		}
		for el := left.Pairs.Front(); el != nil; el = el.Next() {
			other, ok := right.Pairs.Get(el.Key)
			if !ok || !DeepEquals(el.Value, other) {
				return false
			}
		}
		return true
	}
	return false
}
