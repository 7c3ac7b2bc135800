package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// JSONKind tags the variant held by a JSONValue.
type JSONKind int

const (
	JSONNull JSONKind = iota
	JSONBool
	JSONNumber
	JSONString
	JSONArray
	JSONObject
)

// JSONValue is any JSON value as a tagged union. Only the field matching
// Kind is meaningful.
type JSONValue struct {
	Kind   JSONKind
	Bool   bool
	Number float64
	String string
	Array  []JSONValue
	Object map[string]JSONValue
}

func (v *JSONValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case 'n':
		*v = JSONValue{Kind: JSONNull}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = JSONValue{Kind: JSONBool, Bool: b}
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = JSONValue{Kind: JSONString, String: s}
	case '[':
		var arr []JSONValue
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		*v = JSONValue{Kind: JSONArray, Array: arr}
	case '{':
		var obj map[string]JSONValue
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*v = JSONValue{Kind: JSONObject, Object: obj}
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = JSONValue{Kind: JSONNumber, Number: n}
	}
	return nil
}

func (v JSONValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case JSONBool:
		return json.Marshal(v.Bool)
	case JSONNumber:
		return json.Marshal(v.Number)
	case JSONString:
		return json.Marshal(v.String)
	case JSONArray:
		if v.Array == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Array)
	case JSONObject:
		if v.Object == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Object)
	default:
		return []byte("null"), nil
	}
}

// IsNull reports a JSON null or a missing value.
func (v JSONValue) IsNull() bool {
	return v.Kind == JSONNull
}

// Field returns the object member key, or a null value.
func (v JSONValue) Field(key string) JSONValue {
	if v.Kind != JSONObject {
		return JSONValue{}
	}
	return v.Object[key]
}

// FirstField resolves aliases in order and returns the first non-null member.
func (v JSONValue) FirstField(aliases ...string) (JSONValue, bool) {
	for _, k := range aliases {
		if f := v.Field(k); !f.IsNull() {
			return f, true
		}
	}
	return JSONValue{}, false
}

// StringValue renders scalars as text; numbers without a fraction print as integers.
func (v JSONValue) StringValue() (string, bool) {
	switch v.Kind {
	case JSONString:
		return v.String, true
	case JSONNumber:
		if v.Number == float64(int64(v.Number)) {
			return strconv.FormatInt(int64(v.Number), 10), true
		}
		return strconv.FormatFloat(v.Number, 'f', -1, 64), true
	case JSONBool:
		return strconv.FormatBool(v.Bool), true
	default:
		return "", false
	}
}

// FloatValue reads numbers and numeric strings.
func (v JSONValue) FloatValue() (float64, bool) {
	switch v.Kind {
	case JSONNumber:
		return v.Number, true
	case JSONString:
		f, err := strconv.ParseFloat(v.String, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Items returns the array elements, nil for anything else.
func (v JSONValue) Items() []JSONValue {
	if v.Kind != JSONArray {
		return nil
	}
	return v.Array
}
