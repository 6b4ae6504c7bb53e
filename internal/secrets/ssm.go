// Package secrets resolves credentials kept in AWS Systems Manager
// Parameter Store.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterAPI is the part of the SSM client used here
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStore reads decrypted parameters
type ParameterStore struct {
	client ParameterAPI
}

// NewParameterStore creates a store using the default AWS credential chain
func NewParameterStore(ctx context.Context) (*ParameterStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewParameterStoreWithClient(ssm.NewFromConfig(cfg)), nil
}

// NewParameterStoreWithClient wraps an existing SSM client
func NewParameterStoreWithClient(client ParameterAPI) *ParameterStore {
	return &ParameterStore{client: client}
}

// Get returns the decrypted value of the named parameter
func (s *ParameterStore) Get(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("parameter " + name + " has no value")
	}
	return aws.ToString(out.Parameter.Value), nil
}
