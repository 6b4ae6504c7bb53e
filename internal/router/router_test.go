package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typesense-sync/internal/cache"
	"typesense-sync/internal/config"
	"typesense-sync/internal/models"
	"typesense-sync/internal/processor"
	"typesense-sync/internal/provisioner"
	"typesense-sync/internal/query"
	"typesense-sync/internal/typesense"
	"typesense-sync/internal/typesense/typesensetest"
)

const streamEvent = `{
  "Records": [
    {
      "eventID": "1",
      "eventName": "INSERT",
      "eventSource": "aws:dynamodb",
      "dynamodb": {
        "NewImage": {
          "id": {"S": "x1"},
          "name": {"S": "t"},
          "updatedAt": {"S": "2023-09-15T19:24:19.368Z"}
        },
        "StreamViewType": "NEW_AND_OLD_IMAGES"
      },
      "eventSourceARN": "arn:aws:dynamodb:us-east-1:446581856886:table/Blog-abc123/stream/2023-09-14T15:08:09.233"
    }
  ]
}`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newRouter(t *testing.T) (*Router, *typesensetest.Server) {
	t.Helper()
	srv := typesensetest.NewServer("key")
	t.Cleanup(srv.Close)

	logger := testLogger()
	client := typesense.NewClientWithURL(srv.URL, "key", srv.Client(), nil, logger)
	existence, err := cache.NewMemoryCache(16)
	require.NoError(t, err)

	proc := processor.NewProcessor(
		client,
		provisioner.New(client, existence, nil, logger),
		processor.NewExpander(config.FieldsMap{}, logger),
		nil, nil, logger,
	)
	return New(proc, query.NewProxy(client, nil, logger), logger), srv
}

func TestDecodeChangeBatch(t *testing.T) {
	inv, err := Decode([]byte(streamEvent))
	require.NoError(t, err)

	batch, ok := inv.(*models.ChangeBatch)
	require.True(t, ok)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "INSERT", batch.Records[0].EventName)
}

func TestDecodeStringifiedQuery(t *testing.T) {
	payload := `"{\"typeName\":\"Query\",\"tableName\":\"Blog-mp6xr657pvbpjbyd4nqbvk44du-dev\",\"arguments\":\"{\\\"searchParameters\\\":{\\\"q\\\":\\\"text\\\",\\\"query_by\\\":\\\"name\\\",\\\"filter_by\\\":\\\"num_comments:>100\\\",\\\"sort_by\\\":\\\"num_comments:desc\\\"}}\"}"`

	inv, err := Decode([]byte(payload))
	require.NoError(t, err)

	q, ok := inv.(*models.QueryInvocation)
	require.True(t, ok)
	assert.Equal(t, "Query", q.TypeName)
	assert.Equal(t, "Blog-mp6xr657pvbpjbyd4nqbvk44du-dev", q.TableName)
	assert.Equal(t, map[string]interface{}{
		"q":         "text",
		"query_by":  "name",
		"filter_by": "num_comments:>100",
		"sort_by":   "num_comments:desc",
	}, q.Arguments.SearchParameters)
}

func TestDecodeObjectQuery(t *testing.T) {
	payload := `{"typeName":"Query","fieldName":"rawSearch","arguments":{"collection":"Blog","searchParameters":{"q":"text","query_by":"name"}}}`

	inv, err := Decode([]byte(payload))
	require.NoError(t, err)

	q := inv.(*models.QueryInvocation)
	assert.Equal(t, "rawSearch", q.FieldName)
	assert.Equal(t, "Blog", q.Arguments.Collection)
}

func TestDecodeUnknown(t *testing.T) {
	for _, payload := range []string{
		``,
		`null`,
		`42`,
		`[]`,
		`"just a string"`,
		`{}`,
		`{"Records": []}`,
		`{"Records": null}`,
		`{"foo": "bar"}`,
		`{not json`,
	} {
		_, err := Decode([]byte(payload))
		var unknown *models.UnknownEventError
		assert.True(t, errors.As(err, &unknown), "payload %q: %v", payload, err)
		assert.ErrorIs(t, err, models.ErrUnknownEvent)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, payload := range []string{
		`{"Records": "nope"}`,
		`{"Records": [{"dynamodb": {"NewImage": {"id": {"X": "y"}}}}]}`,
		`{"typeName": "Query", "arguments": "{broken"}`,
	} {
		_, err := Decode([]byte(payload))
		var decodeErr *models.DecodeError
		assert.True(t, errors.As(err, &decodeErr), "payload %q: %v", payload, err)
	}
}

func TestHandleChangeBatch(t *testing.T) {
	r, srv := newRouter(t)

	result, err := r.Handle(context.Background(), json.RawMessage(streamEvent))
	require.NoError(t, err)
	assert.Nil(t, result)

	doc, ok := srv.Document("blog-abc123", "x1")
	require.True(t, ok)
	assert.Equal(t, "2023-09-15", doc["updatedAtDay"])
}

func TestHandleRawSearch(t *testing.T) {
	r, srv := newRouter(t)
	srv.AddCollection("blog")
	srv.SearchResponse = `{"found":1,"hits":[{"document":{"id":"x1"}}]}`

	payload := `{"typeName":"Query","fieldName":"rawSearch","arguments":"{\"collection\":\"Blog\",\"searchParameters\":{\"q\":\"text\",\"query_by\":\"name\"}}"}`
	result, err := r.Handle(context.Background(), json.RawMessage(payload))
	require.NoError(t, err)
	assert.Equal(t, srv.SearchResponse, result)

	calls := srv.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, "/collections/blog/documents/search", last.Path)
	assert.Equal(t, "text", last.Query.Get("q"))
	assert.Equal(t, "name", last.Query.Get("query_by"))
}

func TestHandleRawSearchKeepsLargeIntegers(t *testing.T) {
	r, srv := newRouter(t)
	srv.AddCollection("blog")

	payload := `{"typeName":"Query","fieldName":"rawSearch","arguments":{"collection":"blog","searchParameters":{"q":"*","filter_by_id":12345678901234567,"per_page":2.5}}}`
	inv, err := Decode([]byte(payload))
	require.NoError(t, err)
	params := inv.(*models.QueryInvocation).Arguments.SearchParameters
	assert.Equal(t, json.Number("12345678901234567"), params["filter_by_id"])

	_, err = r.Handle(context.Background(), json.RawMessage(payload))
	require.NoError(t, err)

	calls := srv.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, "12345678901234567", last.Query.Get("filter_by_id"))
	assert.Equal(t, "2.5", last.Query.Get("per_page"))
}

func TestHandleUnknownMakesNoBackendCalls(t *testing.T) {
	r, srv := newRouter(t)

	_, err := r.Handle(context.Background(), json.RawMessage(`{"detail-type":"Scheduled Event"}`))
	assert.ErrorIs(t, err, models.ErrUnknownEvent)
	assert.Empty(t, srv.Calls())
}

type failingSyncer struct{ err error }

func (f failingSyncer) SyncBatch(context.Context, []events.DynamoDBEventRecord) ([]models.SyncOperation, error) {
	return nil, f.err
}

func TestHandlePropagatesBatchFailure(t *testing.T) {
	cause := &models.SyncError{Action: models.ActionUpsert, Collection: "blog", DocumentID: "x1", Err: errors.New("boom")}
	r := New(failingSyncer{err: cause}, nil, testLogger())

	_, err := r.Handle(context.Background(), json.RawMessage(streamEvent))
	assert.ErrorIs(t, err, cause)
}
