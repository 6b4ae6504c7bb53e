package decoder

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
)

// UnmarshalMap converts a typed attribute map into plain Go values
func UnmarshalMap(item map[string]events.DynamoDBAttributeValue) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(item))
	for name, av := range item {
		v, err := Unmarshal(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// Unmarshal converts a single typed attribute value into a plain Go value.
// Numbers become int64 when integral and float64 otherwise.
func Unmarshal(av events.DynamoDBAttributeValue) (interface{}, error) {
	switch av.DataType() {
	case events.DataTypeString:
		return av.String(), nil
	case events.DataTypeNumber:
		return parseNumber(av.Number())
	case events.DataTypeBoolean:
		return av.Boolean(), nil
	case events.DataTypeNull:
		return nil, nil
	case events.DataTypeBinary:
		return av.Binary(), nil
	case events.DataTypeStringSet:
		return av.StringSet(), nil
	case events.DataTypeNumberSet:
		set := av.NumberSet()
		out := make([]interface{}, 0, len(set))
		for _, n := range set {
			v, err := parseNumber(n)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case events.DataTypeBinarySet:
		return av.BinarySet(), nil
	case events.DataTypeList:
		list := av.List()
		out := make([]interface{}, 0, len(list))
		for i, item := range list {
			v, err := Unmarshal(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			out = append(out, v)
		}
		return out, nil
	case events.DataTypeMap:
		return UnmarshalMap(av.Map())
	default:
		return nil, fmt.Errorf("unsupported attribute data type %d", av.DataType())
	}
}

func parseNumber(s string) (interface{}, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}
