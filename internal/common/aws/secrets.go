// internal/common/aws/secrets.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"change-creator/internal/common/errors"
	"change-creator/internal/common/logger"
)

// SecretsManagerService is the part of the Secrets Manager client the store needs.
type SecretsManagerService interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretStore reads credentials kept as one JSON object per secret.
type SecretStore struct {
	client SecretsManagerService
	logger logger.Logger
}

func NewSecretStore(ctx context.Context, region string, log logger.Logger) (*SecretStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.NewSecretFetchFailedError("", err)
	}
	return NewSecretStoreWithClient(secretsmanager.NewFromConfig(awsCfg), log), nil
}

func NewSecretStoreWithClient(client SecretsManagerService, log logger.Logger) *SecretStore {
	return &SecretStore{client: client, logger: log}
}

// Values returns the key/value pairs of secretID. Values are never logged.
func (s *SecretStore) Values(ctx context.Context, secretID string) (map[string]string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, errors.NewSecretFetchFailedError(secretID, err)
	}

	secret := aws.ToString(out.SecretString)
	if secret == "" {
		return nil, errors.NewSecretFetchFailedError(secretID, fmt.Errorf("secret has no string value"))
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(secret), &values); err != nil {
		return nil, errors.NewSecretFetchFailedError(secretID, fmt.Errorf("secret is not a JSON object of strings: %w", err))
	}

	s.logger.Debug("loaded secrets", map[string]interface{}{
		"secretId": secretID,
		"keys":     len(values),
	})
	return values, nil
}
