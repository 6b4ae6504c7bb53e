// Package decoder converts DynamoDB stream records into plain documents.
package decoder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"typesense-sync/internal/models"
)

// DecodeRecord converts a stream record into a ChangeRecord with plain images
func DecodeRecord(rec events.DynamoDBEventRecord) (*models.ChangeRecord, error) {
	table, err := TableFromARN(rec.EventSourceArn)
	if err != nil {
		return nil, &models.DecodeError{EventID: rec.EventID, Err: err}
	}

	kind := models.EventKind(rec.EventName)
	switch kind {
	case models.EventInsert, models.EventModify, models.EventRemove:
	default:
		return nil, &models.DecodeError{EventID: rec.EventID, Reason: "unsupported event name " + strconv.Quote(rec.EventName)}
	}

	record := &models.ChangeRecord{
		EventID: rec.EventID,
		Kind:    kind,
		Table:   table,
	}

	if rec.Change.NewImage != nil {
		if record.NewImage, err = UnmarshalMap(rec.Change.NewImage); err != nil {
			return nil, &models.DecodeError{EventID: rec.EventID, Reason: "new image", Err: err}
		}
	}
	if rec.Change.OldImage != nil {
		if record.OldImage, err = UnmarshalMap(rec.Change.OldImage); err != nil {
			return nil, &models.DecodeError{EventID: rec.EventID, Reason: "old image", Err: err}
		}
	}
	if record.NewImage == nil && record.OldImage == nil {
		return nil, &models.DecodeError{EventID: rec.EventID, Reason: "record has neither new nor old image"}
	}

	return record, nil
}

// Document returns a copy of the record's new image, or its old image when
// the new one is absent.
func Document(record *models.ChangeRecord) (models.Document, error) {
	image := record.NewImage
	if image == nil {
		image = record.OldImage
	}
	if image == nil {
		return nil, &models.DecodeError{EventID: record.EventID, Reason: "record has neither new nor old image"}
	}

	doc := make(models.Document, len(image))
	for k, v := range image {
		doc[k] = v
	}
	return doc, nil
}

// TableFromARN extracts the table name from a stream ARN such as
// arn:aws:dynamodb:us-east-1:123456789012:table/Blog-xyz-dev/stream/2023-09-14T15:08:09.233
func TableFromARN(arn string) (string, error) {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 {
		return "", fmt.Errorf("malformed event source ARN %q", arn)
	}
	resource := strings.Split(parts[5], "/")
	if len(resource) < 2 || resource[0] != "table" || resource[1] == "" {
		return "", fmt.Errorf("event source ARN does not name a table: %q", arn)
	}
	return resource[1], nil
}
