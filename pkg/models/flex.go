package models

import (
	"encoding/json"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// FlexString decodes a BSON string or number into its textual form.
type FlexString string

// String returns the decoded value
func (f FlexString) String() string { return string(f) }

// UnmarshalBSONValue implements bson.ValueUnmarshaler
func (f *FlexString) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.String:
		*f = FlexString(rv.StringValue())
	case bsontype.Double:
		*f = FlexString(strconv.FormatFloat(rv.Double(), 'f', -1, 64))
	case bsontype.Int32:
		*f = FlexString(strconv.FormatInt(int64(rv.Int32()), 10))
	case bsontype.Int64:
		*f = FlexString(strconv.FormatInt(rv.Int64(), 10))
	case bsontype.Decimal128:
		*f = FlexString(rv.Decimal128().String())
	case bsontype.Null, bsontype.Undefined:
		*f = ""
	default:
		return fmt.Errorf("cannot decode %s into a string", t)
	}
	return nil
}

// StringList decodes either a BSON array or a JSON encoded array stored as a string.
type StringList []string

// UnmarshalBSONValue implements bson.ValueUnmarshaler
func (l *StringList) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*l = nil
		return nil
	case bsontype.String:
		raw := bson.RawValue{Type: t, Value: data}.StringValue()
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			if raw == "" {
				*l = nil
			} else {
				*l = StringList{raw}
			}
			return nil
		}
		*l = out
		return nil
	case bsontype.Array:
		var items []interface{}
		if err := bson.UnmarshalValue(t, data, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("cannot decode %s into a string list", t)
	}
}
