// Package typesense wraps the Typesense API for the calls the sync
// service makes.
package typesense

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	tsgo "github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"
	"github.com/typesense/typesense-go/typesense/api/pointer"

	"typesense-sync/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// HTTPError is a non-2xx response from Typesense
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("typesense responded with status %d: %s", e.Status, e.Body)
}

// IsConflict reports whether err is a 409 response, e.g. a collection that already exists
func IsConflict(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusConflict
}

// IsNotFound reports whether err is a 404 response
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound
}

// Field is a collection schema field
type Field struct {
	Name     string
	Type     string
	Optional bool
	Facet    bool
}

// CollectionSchema describes a collection to create
type CollectionSchema struct {
	Name               string
	Fields             []Field
	EnableNestedFields bool
}

// AutoSchema returns a schema that types every field automatically
func AutoSchema(name string) CollectionSchema {
	return CollectionSchema{
		Name:               name,
		Fields:             []Field{{Name: ".*", Type: "auto"}},
		EnableNestedFields: true,
	}
}

func (s CollectionSchema) toAPI() *api.CollectionSchema {
	fields := make([]api.Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		field := api.Field{Name: f.Name, Type: f.Type}
		if f.Optional {
			field.Optional = pointer.True()
		}
		if f.Facet {
			field.Facet = pointer.True()
		}
		fields = append(fields, field)
	}
	schema := &api.CollectionSchema{Name: s.Name, Fields: fields}
	if s.EnableNestedFields {
		schema.EnableNestedFields = pointer.True()
	}
	return schema
}

// Collection is the subset of a collection description the service reads
type Collection struct {
	Name string
}

// Options configures a Client
type Options struct {
	Host              string
	Port              int
	Protocol          string
	APIKey            string
	ConnectionTimeout time.Duration
}

// Client talks to a single Typesense node. Collection and document calls
// go through the typesense-go client; search keeps a raw HTTP path so the
// response body can be returned untouched.
type Client struct {
	api        *tsgo.Client
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *logrus.Logger
}

// NewClient creates a new Typesense client
func NewClient(opts Options, m *metrics.Metrics, logger *logrus.Logger) *Client {
	protocol := opts.Protocol
	if protocol == "" {
		protocol = "http"
	}
	timeout := opts.ConnectionTimeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	base := url.URL{Scheme: protocol, Host: opts.Host}
	if opts.Port != 0 {
		base.Host = fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	}
	return NewClientWithURL(base.String(), opts.APIKey, &http.Client{Timeout: timeout}, m, logger)
}

// NewClientWithURL creates a client for a base URL such as http://localhost:8108
func NewClientWithURL(baseURL, apiKey string, httpClient *http.Client, m *metrics.Metrics, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := httpClient.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		api: tsgo.NewClient(
			tsgo.WithServer(baseURL),
			tsgo.WithAPIKey(apiKey),
			tsgo.WithConnectionTimeout(timeout),
		),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

// Health checks that the node is up and ready
func (c *Client) Health(ctx context.Context) (err error) {
	defer c.observe("health", time.Now(), &err)

	timeout := c.httpClient.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ok, err := c.api.Health(ctx, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("typesense node reported not ok")
	}
	return nil
}

// ListCollections returns the collections on the node
func (c *Client) ListCollections(ctx context.Context) (collections []Collection, err error) {
	defer c.observe("list_collections", time.Now(), &err)

	resp, err := c.api.Collections().Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	collections = make([]Collection, 0, len(resp))
	for _, col := range resp {
		if col == nil {
			continue
		}
		collections = append(collections, Collection{Name: col.Name})
	}
	return collections, nil
}

// CreateCollection creates a collection
func (c *Client) CreateCollection(ctx context.Context, schema CollectionSchema) (err error) {
	defer c.observe("create_collection", time.Now(), &err)

	_, err = c.api.Collections().Create(ctx, schema.toAPI())
	return err
}

// UpsertDocument creates or replaces a document by its id
func (c *Client) UpsertDocument(ctx context.Context, collection string, document map[string]interface{}) (err error) {
	defer c.observe("upsert", time.Now(), &err)

	_, err = c.api.Collection(collection).Documents().Upsert(ctx, document)
	return err
}

// DeleteDocument deletes a document by id
func (c *Client) DeleteDocument(ctx context.Context, collection, id string) (err error) {
	defer c.observe("delete", time.Now(), &err)

	_, err = c.api.Collection(collection).Document(id).Delete(ctx)
	return err
}

// observe converts library errors to HTTPError, wraps transport errors and
// records the call
func (c *Client) observe(operation string, start time.Time, errp *error) {
	if err := *errp; err != nil {
		var apiErr *tsgo.HTTPError
		var httpErr *HTTPError
		switch {
		case errors.As(err, &apiErr):
			*errp = &HTTPError{Status: apiErr.Status, Body: string(bytes.TrimSpace(apiErr.Body))}
		case errors.As(err, &httpErr):
		default:
			*errp = fmt.Errorf("failed to call typesense %s: %w", operation, err)
		}
	}
	c.metrics.ObserveBackend(operation, start, *errp)
	if *errp == nil && c.logger != nil {
		c.logger.Debugf("Typesense %s ok in %s", operation, time.Since(start))
	}
}
