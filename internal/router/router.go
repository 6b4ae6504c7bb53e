// Package router is the single entry point for inbound invocations.
package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"typesense-sync/internal/models"
)

// BatchSyncer applies a batch of change records
type BatchSyncer interface {
	SyncBatch(ctx context.Context, records []events.DynamoDBEventRecord) ([]models.SyncOperation, error)
}

// QueryHandler answers a resolver query
type QueryHandler interface {
	Handle(ctx context.Context, inv *models.QueryInvocation) (string, error)
}

// Router dispatches decoded invocations
type Router struct {
	syncer BatchSyncer
	query  QueryHandler
	logger *logrus.Logger
}

// New creates a router
func New(syncer BatchSyncer, query QueryHandler, logger *logrus.Logger) *Router {
	return &Router{
		syncer: syncer,
		query:  query,
		logger: logger,
	}
}

// Handle decodes payload and dispatches it. A change batch yields a nil
// result; a query yields the raw search response as a string.
func (r *Router) Handle(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	inv, err := Decode(payload)
	if err != nil {
		r.logger.Errorf("Rejected invocation: %v", err)
		return nil, err
	}

	switch v := inv.(type) {
	case *models.ChangeBatch:
		r.logger.Debugf("Dispatching batch of %d change records", len(v.Records))
		if _, err := r.syncer.SyncBatch(ctx, v.Records); err != nil {
			return nil, err
		}
		return nil, nil

	case *models.QueryInvocation:
		r.logger.Debugf("Dispatching %s.%s query", v.TypeName, v.FieldName)
		result, err := r.query.Handle(ctx, v)
		if err != nil {
			r.logger.Errorf("Query %s.%s failed: %v", v.TypeName, v.FieldName, err)
			return nil, err
		}
		return result, nil

	default:
		return nil, &models.UnknownEventError{Detail: fmt.Sprintf("unhandled invocation %T", inv)}
	}
}
