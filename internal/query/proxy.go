// Package query forwards resolver search requests to Typesense.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"typesense-sync/internal/metrics"
	"typesense-sync/internal/models"
)

// ErrNoCollection is returned when a request does not resolve to a collection
var ErrNoCollection = errors.New("search request does not name a collection")

// Searcher runs a search and returns the backend's raw response
type Searcher interface {
	Search(ctx context.Context, collection string, params map[string]interface{}) (json.RawMessage, error)
}

// Proxy resolves the target collection of a query and forwards its
// parameters unchanged.
type Proxy struct {
	searcher Searcher
	metrics  *metrics.Metrics
	logger   *logrus.Logger
}

// NewProxy creates a new query proxy
func NewProxy(searcher Searcher, m *metrics.Metrics, logger *logrus.Logger) *Proxy {
	return &Proxy{
		searcher: searcher,
		metrics:  m,
		logger:   logger,
	}
}

// Resolve turns a resolver invocation into a search request. A rawSearch
// invocation targets its explicit collection argument; any other field
// targets the collection of the table backing the model.
func Resolve(inv *models.QueryInvocation) (models.SearchRequest, error) {
	var collection string
	if inv.FieldName == models.RawSearchField {
		collection = strings.ToLower(inv.Arguments.Collection)
	} else {
		collection = models.CollectionForTable(inv.TableName)
	}
	if collection == "" {
		return models.SearchRequest{}, ErrNoCollection
	}
	return models.SearchRequest{
		Collection: collection,
		Parameters: inv.Arguments.SearchParameters,
	}, nil
}

// Handle resolves and runs a query invocation. The backend response is
// returned as text, unmodified.
func (p *Proxy) Handle(ctx context.Context, inv *models.QueryInvocation) (string, error) {
	req, err := Resolve(inv)
	if err != nil {
		p.metrics.SearchServed(err)
		return "", err
	}
	raw, err := p.Search(ctx, req)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Search forwards a search request to the backend
func (p *Proxy) Search(ctx context.Context, req models.SearchRequest) (json.RawMessage, error) {
	if req.Collection == "" {
		p.metrics.SearchServed(ErrNoCollection)
		return nil, ErrNoCollection
	}

	raw, err := p.searcher.Search(ctx, req.Collection, req.Parameters)
	p.metrics.SearchServed(err)
	if err != nil {
		p.logger.Errorf("Search on %s failed: %v", req.Collection, err)
		return nil, fmt.Errorf("failed to search %s: %w", req.Collection, err)
	}

	p.logger.Debugf("Search on %s returned %d bytes", req.Collection, len(raw))
	return raw, nil
}
