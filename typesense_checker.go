package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"typesense-sync/internal/typesense"
)

// TypesenseChecker validates the Typesense connection and API key
type TypesenseChecker struct {
	client *typesense.Client
	logger *logrus.Logger
}

// NewTypesenseChecker creates a new Typesense checker
func NewTypesenseChecker(client *typesense.Client, logger *logrus.Logger) *TypesenseChecker {
	return &TypesenseChecker{
		client: client,
		logger: logger,
	}
}

// CheckConnectionAndPermissions verifies the node is healthy and the API key
// can read collections
func (c *TypesenseChecker) CheckConnectionAndPermissions(ctx context.Context) error {
	if err := c.client.Health(ctx); err != nil {
		return fmt.Errorf("failed to connect to Typesense: %w", err)
	}

	c.logger.Info("Successfully connected to Typesense")

	collections, err := c.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("api key cannot list collections: %w", err)
	}

	c.logger.Infof("API key verified, %d collections visible", len(collections))
	return nil
}
