// Package provisioner creates index collections on first use.
package provisioner

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"typesense-sync/internal/cache"
	"typesense-sync/internal/metrics"
	"typesense-sync/internal/models"
	"typesense-sync/internal/typesense"
)

// Backend is the part of the Typesense API the provisioner needs
type Backend interface {
	ListCollections(ctx context.Context) ([]typesense.Collection, error)
	CreateCollection(ctx context.Context, schema typesense.CollectionSchema) error
}

// Provisioner ensures collections exist before documents are written to them.
//
// Concurrent calls for the same name inside one process share a single
// lookup. Across processes two creates can still race; the loser gets a
// conflict from Typesense, which counts as success.
type Provisioner struct {
	backend Backend
	cache   cache.ExistenceCache
	metrics *metrics.Metrics
	logger  *logrus.Logger
	group   singleflight.Group
}

// New creates a provisioner
func New(backend Backend, existence cache.ExistenceCache, m *metrics.Metrics, logger *logrus.Logger) *Provisioner {
	return &Provisioner{
		backend: backend,
		cache:   existence,
		metrics: m,
		logger:  logger,
	}
}

// EnsureCollection creates the named collection with an auto-typed schema
// unless it is known to exist.
func (p *Provisioner) EnsureCollection(ctx context.Context, name string) error {
	if p.cached(ctx, name) {
		return nil
	}

	_, err, _ := p.group.Do(name, func() (interface{}, error) {
		return nil, p.provision(ctx, name)
	})
	return err
}

func (p *Provisioner) cached(ctx context.Context, name string) bool {
	ok, err := p.cache.Exists(ctx, name)
	if err != nil {
		p.logger.Warnf("Existence cache lookup for %s failed, checking Typesense: %v", name, err)
		ok = false
	}
	p.metrics.CacheLookup(ok)
	return ok
}

func (p *Provisioner) provision(ctx context.Context, name string) error {
	collections, err := p.backend.ListCollections(ctx)
	if err != nil {
		return &models.ProvisionError{Collection: name, Err: err}
	}
	for _, c := range collections {
		if c.Name == name {
			p.remember(ctx, name)
			return nil
		}
	}

	err = p.backend.CreateCollection(ctx, typesense.AutoSchema(name))
	switch {
	case err == nil:
		p.metrics.CollectionCreated()
		p.logger.Infof("Created collection %s", name)
	case typesense.IsConflict(err):
		p.logger.Debugf("Collection %s was created concurrently", name)
	default:
		return &models.ProvisionError{Collection: name, Err: err}
	}

	p.remember(ctx, name)
	return nil
}

func (p *Provisioner) remember(ctx context.Context, name string) {
	if err := p.cache.MarkExists(ctx, name); err != nil {
		p.logger.Warnf("Failed to cache existence of collection %s: %v", name, err)
	}
}
