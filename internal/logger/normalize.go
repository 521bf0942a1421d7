package logger

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

const (
	circularMarker = "[Circular]"
	depthMarker    = "[MaxDepth]"
	maxDepth       = 64
)

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// encodeMessages normalizes values and marshals them as a JSON array.
// A panic anywhere below is turned into an error.
func encodeMessages(values []any) (b []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			b = nil
			err = fmt.Errorf("panic while serializing: %v", r)
		}
	}()

	out := make([]any, len(values))
	n := newNormalizer()
	for i, v := range values {
		out[i] = n.value(reflect.ValueOf(v), 0)
	}
	return json.Marshal(out)
}

// Normalize converts v into a value encoding/json can always marshal:
// reference cycles become "[Circular]", big numbers become decimal strings,
// errors become their message, and unencodable kinds become a type placeholder.
func Normalize(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("<unserializable %T>", v)
		}
	}()
	return newNormalizer().value(reflect.ValueOf(v), 0)
}

// refKey identifies a reference on the current path. The type is part of the
// key because a struct and its first field share an address.
type refKey struct {
	ptr uintptr
	typ reflect.Type
}

type normalizer struct {
	path map[refKey]struct{}
}

func newNormalizer() *normalizer {
	return &normalizer{path: make(map[refKey]struct{})}
}

func (n *normalizer) enter(v reflect.Value) (refKey, bool) {
	k := refKey{ptr: v.Pointer(), typ: v.Type()}
	if _, ok := n.path[k]; ok {
		return k, false
	}
	n.path[k] = struct{}{}
	return k, true
}

func (n *normalizer) leave(k refKey) {
	delete(n.path, k)
}

func (n *normalizer) value(v reflect.Value, depth int) any {
	if !v.IsValid() {
		return nil
	}
	if depth > maxDepth {
		return depthMarker
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}

	if v.CanInterface() {
		if out, ok := special(v); ok {
			return out
		}
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return f
	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprint(v.Complex())
	case reflect.String:
		return v.String()
	case reflect.Interface:
		return n.value(v.Elem(), depth+1)
	case reflect.Pointer:
		k, ok := n.enter(v)
		if !ok {
			return circularMarker
		}
		defer n.leave(k)
		return n.value(v.Elem(), depth+1)
	case reflect.Map:
		k, ok := n.enter(v)
		if !ok {
			return circularMarker
		}
		defer n.leave(k)
		return n.mapValue(v, depth)
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes()
		}
		if v.Len() > 0 {
			k, ok := n.enter(v)
			if !ok {
				return circularMarker
			}
			defer n.leave(k)
		}
		return n.listValue(v, depth)
	case reflect.Array:
		return n.listValue(v, depth)
	case reflect.Struct:
		return n.structValue(v, depth)
	default:
		// func, chan, unsafe pointer
		return "<" + v.Type().String() + ">"
	}
}

// special handles types with their own string or JSON form
func special(v reflect.Value) (any, bool) {
	switch x := v.Interface().(type) {
	case *big.Int:
		return x.String(), true
	case big.Int:
		return x.String(), true
	case *big.Float:
		return x.Text('g', -1), true
	case *big.Rat:
		return x.RatString(), true
	case json.RawMessage:
		if json.Valid(x) {
			return x, true
		}
		return string(x), true
	case error:
		return x.Error(), true
	}

	t := v.Type()
	if t.Implements(jsonMarshalerType) {
		return probeMarshaler(v.Interface())
	}
	if t.Implements(textMarshalerType) {
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return "<" + t.String() + ">", true
		}
		return string(text), true
	}
	if s, ok := v.Interface().(fmt.Stringer); ok && isScalar(t.Kind()) {
		return s.String(), true
	}
	return nil, false
}

// probeMarshaler runs MarshalJSON once so a failing marshaler degrades to a
// placeholder instead of failing the whole entry.
func probeMarshaler(m any) (any, bool) {
	b, err := m.(json.Marshaler).MarshalJSON()
	if err != nil || !json.Valid(b) {
		return fmt.Sprintf("<%T>", m), true
	}
	return json.RawMessage(b), true
}

func isScalar(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (n *normalizer) listValue(v reflect.Value, depth int) []any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = n.value(v.Index(i), depth+1)
	}
	return out
}

func (n *normalizer) mapValue(v reflect.Value, depth int) object {
	obj := make(object, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		obj = append(obj, member{
			key:   mapKey(iter.Key()),
			value: n.value(iter.Value(), depth+1),
		})
	}
	sort.Slice(obj, func(i, j int) bool { return obj[i].key < obj[j].key })
	return obj
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.CanInterface() {
		if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
			if b, err := tm.MarshalText(); err == nil {
				return string(b)
			}
		}
		return fmt.Sprint(k.Interface())
	}
	return k.String()
}

func (n *normalizer) structValue(v reflect.Value, depth int) object {
	t := v.Type()
	obj := make(object, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fv := v.Field(i)

		name, omitEmpty, skip := parseJSONTag(f.Tag.Get("json"))
		if skip {
			continue
		}

		if f.Anonymous && name == "" && fv.Kind() == reflect.Struct {
			if nested, ok := n.value(fv, depth+1).(object); ok {
				obj = append(obj, nested...)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if omitEmpty && fv.IsZero() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		obj = append(obj, member{key: name, value: n.value(fv, depth+1)})
	}
	return obj
}

func parseJSONTag(tag string) (name string, omitEmpty bool, skip bool) {
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitEmpty = true
		}
	}
	return parts[0], omitEmpty, false
}

// object is a JSON object that keeps its member order
type object []member

type member struct {
	key   string
	value any
}

// MarshalJSON writes members in order
func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		val, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
