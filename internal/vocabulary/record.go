package vocabulary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/buger/jsonparser"
)

// Field is one entry of an Object.
type Field struct {
	Name  string
	Value any
}

// Object is a record mapping that keeps the order its fields were decoded
// in. Values are Object, []any, string, float64, bool or nil.
type Object []Field

// Get returns the value of the first field called name.
func (o Object) Get(name string) (any, bool) {
	for _, f := range o {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the value of name rendered as a vocabulary key, or "" when
// the field is absent.
func (o Object) String(name string) string {
	v, ok := o.Get(name)
	if !ok {
		return ""
	}
	return KeyString(v)
}

// MarshalJSON writes the fields in order.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding field %s: %w", f.Name, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FromMap converts a plain map into an Object with fields sorted by name.
// Nested maps and slices are converted too.
func FromMap(m map[string]any) Object {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	obj := make(Object, 0, len(m))
	for _, name := range names {
		obj = append(obj, Field{Name: name, Value: fromAny(m[name])})
	}
	return obj
}

func fromAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return FromMap(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = fromAny(item)
		}
		return items
	case []string:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = item
		}
		return items
	default:
		return v
	}
}

// DecodeObject parses a JSON object keeping the document order of its
// fields at every level.
func DecodeObject(data []byte) (Object, error) {
	value, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	if dataType != jsonparser.Object {
		return nil, fmt.Errorf("decoding record: expected object, got %s", dataType)
	}
	return decodeObject(value)
}

func decodeObject(data []byte) (Object, error) {
	obj := Object{}
	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		v, err := decodeValue(value, dataType)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		obj = append(obj, Field{Name: string(key), Value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeValue(value []byte, dataType jsonparser.ValueType) (any, error) {
	switch dataType {
	case jsonparser.Object:
		return decodeObject(value)
	case jsonparser.Array:
		items := []any{}
		var itemErr error
		_, err := jsonparser.ArrayEach(value, func(v []byte, dt jsonparser.ValueType, _ int, err error) {
			if itemErr != nil {
				return
			}
			if err != nil {
				itemErr = err
				return
			}
			item, err := decodeValue(v, dt)
			if err != nil {
				itemErr = err
				return
			}
			items = append(items, item)
		})
		if err != nil {
			return nil, err
		}
		if itemErr != nil {
			return nil, itemErr
		}
		return items, nil
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Number:
		return jsonparser.ParseFloat(value)
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(value)
	case jsonparser.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", dataType)
	}
}

// KeyString renders a scalar record value as a vocabulary key.
func KeyString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		return fmt.Sprint(val)
	}
}
