package router

import (
	"bytes"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"

	"typesense-sync/internal/models"
)

// envelope holds the top-level keys used to tell invocation shapes apart
type envelope struct {
	Records   json.RawMessage `json:"Records"`
	TypeName  *string         `json:"typeName"`
	FieldName string          `json:"fieldName"`
	TableName string          `json:"tableName"`
	Arguments json.RawMessage `json:"arguments"`
}

// Decode classifies an inbound payload. Resolver invocations may arrive as
// a JSON string holding the JSON object, and their arguments may be a JSON
// string as well.
func Decode(payload []byte) (models.Invocation, error) {
	payload, err := unquote(payload)
	if err != nil {
		return nil, &models.UnknownEventError{Detail: err.Error()}
	}
	if len(payload) == 0 || payload[0] != '{' {
		return nil, &models.UnknownEventError{Detail: "payload is not a JSON object"}
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &models.UnknownEventError{Detail: err.Error()}
	}

	switch {
	case len(env.Records) > 0 && !isNull(env.Records):
		var records []events.DynamoDBEventRecord
		if err := json.Unmarshal(env.Records, &records); err != nil {
			return nil, &models.DecodeError{Reason: "malformed Records", Err: err}
		}
		if len(records) == 0 {
			return nil, &models.UnknownEventError{Detail: "empty Records"}
		}
		return &models.ChangeBatch{Records: records}, nil

	case env.TypeName != nil:
		inv := &models.QueryInvocation{
			TypeName:  *env.TypeName,
			FieldName: env.FieldName,
			TableName: env.TableName,
		}
		args, err := unquote(env.Arguments)
		if err != nil {
			return nil, &models.DecodeError{Reason: "malformed query arguments", Err: err}
		}
		if len(args) > 0 && !isNull(args) {
			// Numbers stay json.Number so large integers are forwarded exactly
			dec := json.NewDecoder(bytes.NewReader(args))
			dec.UseNumber()
			if err := dec.Decode(&inv.Arguments); err != nil {
				return nil, &models.DecodeError{Reason: "malformed query arguments", Err: err}
			}
		}
		return inv, nil

	default:
		return nil, &models.UnknownEventError{Detail: "payload is neither a record batch nor a query"}
	}
}

// unquote returns the JSON text held by a JSON string, or data itself when
// it is not a string.
func unquote(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return data, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return bytes.TrimSpace([]byte(s)), nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
