package processor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"typesense-sync/internal/decoder"
	"typesense-sync/internal/metrics"
	"typesense-sync/internal/models"
	"typesense-sync/internal/typesense"
)

// Indexer writes documents to the search index
type Indexer interface {
	UpsertDocument(ctx context.Context, collection string, document map[string]interface{}) error
	DeleteDocument(ctx context.Context, collection, id string) error
}

// CollectionEnsurer makes sure a collection exists before it is written to
type CollectionEnsurer interface {
	EnsureCollection(ctx context.Context, name string) error
}

// Notifier is told about every applied operation
type Notifier interface {
	Notify(op *models.SyncOperation) error
}

// Processor applies change records to the search index
type Processor struct {
	indexer     Indexer
	provisioner CollectionEnsurer
	expander    *Expander
	notifier    Notifier
	metrics     *metrics.Metrics
	logger      *logrus.Logger
}

// NewProcessor creates a new processor. notifier may be nil.
func NewProcessor(indexer Indexer, provisioner CollectionEnsurer, expander *Expander, notifier Notifier, m *metrics.Metrics, logger *logrus.Logger) *Processor {
	return &Processor{
		indexer:     indexer,
		provisioner: provisioner,
		expander:    expander,
		notifier:    notifier,
		metrics:     m,
		logger:      logger,
	}
}

// Classify decides whether a record becomes an upsert or a delete
func Classify(kind models.EventKind, doc models.Document) models.Action {
	switch kind {
	case models.EventInsert:
		return models.ActionUpsert
	case models.EventModify:
		if truthy(doc[models.SoftDeleteField]) {
			return models.ActionDelete
		}
		return models.ActionUpsert
	default:
		return models.ActionDelete
	}
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}

// SyncBatch applies every record of a batch concurrently. Records are not
// applied in order. The first failure cancels the remaining records and
// fails the whole batch.
func (p *Processor) SyncBatch(ctx context.Context, records []events.DynamoDBEventRecord) ([]models.SyncOperation, error) {
	ops := make([]models.SyncOperation, len(records))

	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			op, err := p.ProcessRecord(gctx, rec)
			if err != nil {
				return err
			}
			ops[i] = *op
			return nil
		})
	}

	err := g.Wait()
	p.metrics.BatchProcessed(len(records), err)
	if err != nil {
		p.logger.Errorf("Failed to sync batch of %d records: %v", len(records), err)
		return nil, err
	}

	p.logger.Infof("Synced batch of %d records", len(records))
	return ops, nil
}

// ProcessRecord decodes, expands, classifies and applies a single record
func (p *Processor) ProcessRecord(ctx context.Context, rec events.DynamoDBEventRecord) (*models.SyncOperation, error) {
	record, err := decoder.DecodeRecord(rec)
	if err != nil {
		return nil, err
	}

	doc, err := decoder.Document(record)
	if err != nil {
		return nil, err
	}
	doc = p.expander.Expand(record.ModelName(), doc)

	id, err := documentID(doc)
	if err != nil {
		return nil, &models.DecodeError{EventID: record.EventID, Err: err}
	}
	// Typesense only accepts string ids
	doc["id"] = id

	op := &models.SyncOperation{
		Action:     Classify(record.Kind, doc),
		Collection: record.CollectionName(),
		DocumentID: id,
		Table:      record.Table,
		EventID:    record.EventID,
		Timestamp:  time.Now().Unix(),
	}

	err = p.apply(ctx, op, doc)
	p.metrics.RecordApplied(string(op.Action), err)
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"action":     op.Action,
		"collection": op.Collection,
		"id":         op.DocumentID,
		"event":      string(record.Kind),
	}).Debug("Applied change record")

	if p.notifier != nil {
		if err := p.notifier.Notify(op); err != nil {
			p.logger.Warnf("Failed to publish sync notification for %s/%s: %v", op.Collection, op.DocumentID, err)
		}
	}
	return op, nil
}

func (p *Processor) apply(ctx context.Context, op *models.SyncOperation, doc models.Document) error {
	switch op.Action {
	case models.ActionUpsert:
		if err := p.provisioner.EnsureCollection(ctx, op.Collection); err != nil {
			return err
		}
		if err := p.indexer.UpsertDocument(ctx, op.Collection, doc); err != nil {
			return &models.SyncError{Action: op.Action, Collection: op.Collection, DocumentID: op.DocumentID, Err: err}
		}
	case models.ActionDelete:
		err := p.indexer.DeleteDocument(ctx, op.Collection, op.DocumentID)
		if typesense.IsNotFound(err) {
			p.logger.Debugf("Document %s already absent from %s", op.DocumentID, op.Collection)
			return nil
		}
		if err != nil {
			return &models.SyncError{Action: op.Action, Collection: op.Collection, DocumentID: op.DocumentID, Err: err}
		}
	}
	return nil
}

func documentID(doc models.Document) (string, error) {
	switch id := doc["id"].(type) {
	case string:
		if id == "" {
			return "", fmt.Errorf("document has an empty id")
		}
		return id, nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	case nil:
		return "", fmt.Errorf("document has no id")
	default:
		return "", fmt.Errorf("document id has unsupported type %T", id)
	}
}
