// Package fingerprint derives deterministic keys for requests.
//
// Two requests with the same name and logically equal payloads always produce the same
// key: map keys and struct fields are sorted, so construction order does not matter.
package fingerprint

import (
	"encoding"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	goreflect "github.com/goccy/go-reflect"
)

// maxDepth bounds recursion into self-referencing payloads.
const maxDepth = 32

// Key returns "name:payload" with the payload encoded deterministically.
//
// Objects are written as {k:v,...} with keys sorted, arrays as [a,...] in order, strings
// quoted, nil as null. Struct fields use their json tag names and skip "-" fields.
func Key(name string, payload any) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(':')
	encode(&b, reflect.ValueOf(payload), 0)
	return b.String()
}

var textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()

func encode(b *strings.Builder, v reflect.Value, depth int) {
	if depth > maxDepth {
		b.WriteString("...")
		return
	}
	if !v.IsValid() {
		b.WriteString("null")
		return
	}

	if v.Type().Implements(textMarshalerType) && v.CanInterface() {
		if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
			b.WriteString("null")
			return
		}
		if text, err := v.Interface().(encoding.TextMarshaler).MarshalText(); err == nil {
			b.WriteString(strconv.Quote(string(text)))
			return
		}
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			b.WriteString("null")
			return
		}
		encode(b, v.Elem(), depth+1)
	case reflect.Bool:
		b.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		b.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		b.WriteString(strconv.FormatComplex(v.Complex(), 'g', -1, 128))
	case reflect.String:
		b.WriteString(strconv.Quote(v.String()))
	case reflect.Slice:
		if v.IsNil() {
			b.WriteString("null")
			return
		}
		encodeArray(b, v, depth)
	case reflect.Array:
		encodeArray(b, v, depth)
	case reflect.Map:
		if v.IsNil() {
			b.WriteString("null")
			return
		}
		encodeMap(b, v, depth)
	case reflect.Struct:
		encodeStruct(b, v, depth)
	default:
		// Functions, channels and unsafe pointers have no logical value; only their type counts.
		b.WriteByte('<')
		b.WriteString(v.Type().String())
		b.WriteByte('>')
	}
}

func encodeArray(b *strings.Builder, v reflect.Value, depth int) {
	b.WriteByte('[')
	for i := range v.Len() {
		if i > 0 {
			b.WriteByte(',')
		}
		encode(b, v.Index(i), depth+1)
	}
	b.WriteByte(']')
}

type pair struct {
	key   string
	value reflect.Value
}

func encodeMap(b *strings.Builder, v reflect.Value, depth int) {
	pairs := make([]pair, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{key: mapKey(iter.Key(), depth), value: iter.Value()})
	}
	encodeObject(b, pairs, depth)
}

func mapKey(k reflect.Value, depth int) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	var kb strings.Builder
	encode(&kb, k, depth+1)
	return kb.String()
}

// field is the encoding plan of one exported struct field.
type field struct {
	name      string
	index     int
	omitEmpty bool
}

// plans caches the sorted field plans of struct types, keyed by goreflect.Type.
var plans sync.Map

// structPlan returns the fields of t to encode, sorted by name.
func structPlan(t reflect.Type) []field {
	id := goreflect.ToType(t)
	if cached, ok := plans.Load(id); ok {
		return cached.([]field)
	}

	fields := make([]field, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitEmpty, skip := fieldName(f)
		if skip {
			continue
		}
		fields = append(fields, field{name: name, index: i, omitEmpty: omitEmpty})
	}
	slices.SortStableFunc(fields, func(a, b field) int {
		return strings.Compare(a.name, b.name)
	})

	actual, _ := plans.LoadOrStore(id, fields)
	return actual.([]field)
}

func encodeStruct(b *strings.Builder, v reflect.Value, depth int) {
	b.WriteByte('{')
	first := true
	for _, f := range structPlan(v.Type()) {
		fv := v.Field(f.index)
		if f.omitEmpty && fv.IsZero() {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(f.name)
		b.WriteByte(':')
		encode(b, fv, depth+1)
	}
	b.WriteByte('}')
}

func fieldName(f reflect.StructField) (name string, omitEmpty, skip bool) {
	tag, ok := f.Tag.Lookup("json")
	if !ok {
		return f.Name, false, false
	}
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, slices.Contains(strings.Split(opts, ","), "omitempty"), false
}

func encodeObject(b *strings.Builder, pairs []pair, depth int) {
	slices.SortFunc(pairs, func(a, b pair) int {
		return strings.Compare(a.key, b.key)
	})

	b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.key)
		b.WriteByte(':')
		encode(b, p.value, depth+1)
	}
	b.WriteByte('}')
}
