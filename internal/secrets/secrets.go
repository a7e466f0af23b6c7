// Package secrets reads credentials from AWS Secrets Manager at startup.
package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/autobid/auction-api/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/sirupsen/logrus"
)

// Reader fetches string secrets by name.
type Reader struct {
	client secretsmanageriface.SecretsManagerAPI
	logger *logrus.Logger
}

// NewReader builds a Secrets Manager client for the configured region.
func NewReader(awsCfg *config.AWSConfig, logger *logrus.Logger) (*Reader, error) {
	sessConfig := &aws.Config{
		Region: aws.String(awsCfg.Region),
	}
	if awsCfg.Profile != "" {
		sessConfig.WithCredentialsChainVerboseErrors(true)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:  *sessConfig,
		Profile: awsCfg.Profile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewReaderWithClient(secretsmanager.New(sess), logger), nil
}

func NewReaderWithClient(client secretsmanageriface.SecretsManagerAPI, logger *logrus.Logger) *Reader {
	return &Reader{client: client, logger: logger}
}

// Get returns the string value of the named secret.
func (r *Reader) Get(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to retrieve secret '%s': %w", name, err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret '%s' has no string value", name)
	}

	r.logger.WithField("secret_name", name).Info("Retrieved secret from Secrets Manager")
	return *result.SecretString, nil
}

// Resolve replaces configured credentials with their Secrets Manager values
// where the configuration asks for it. The reader is only built when needed.
func Resolve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	if !cfg.Redis.PasswordFromSecrets && !cfg.JWT.SecretFromSecrets {
		return nil
	}
	reader, err := NewReader(&cfg.AWS, logger)
	if err != nil {
		return err
	}
	return ResolveWith(ctx, reader, cfg)
}

func ResolveWith(ctx context.Context, reader *Reader, cfg *config.Config) error {
	if cfg.Redis.PasswordFromSecrets {
		password, err := reader.Get(ctx, cfg.AWS.SecretName)
		if err != nil {
			return fmt.Errorf("failed to get Redis password from secrets: %w", err)
		}
		cfg.Redis.Password = password
	}
	if cfg.JWT.SecretFromSecrets {
		secret, err := reader.Get(ctx, cfg.JWT.SecretName)
		if err != nil {
			return fmt.Errorf("failed to get JWT secret from secrets: %w", err)
		}
		cfg.JWT.Secret = secret
	}
	return nil
}
