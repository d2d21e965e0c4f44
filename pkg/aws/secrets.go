package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretReader loads secrets once at startup; nothing is cached.
type SecretReader struct {
	api secretsAPI
}

func NewSecretReader(cfg sdkaws.Config) *SecretReader {
	return &SecretReader{api: secretsmanager.NewFromConfig(cfg)}
}

// Read returns the current version of secretID. Binary secrets are returned
// as their raw bytes.
func (r *SecretReader) Read(ctx context.Context, secretID string) (string, error) {
	out, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     sdkaws.String(secretID),
		VersionStage: sdkaws.String("AWSCURRENT"),
	})
	if err != nil {
		return "", fmt.Errorf("read secret %q: %w", secretID, err)
	}

	switch {
	case out.SecretString != nil && *out.SecretString != "":
		return *out.SecretString, nil
	case len(out.SecretBinary) > 0:
		return string(out.SecretBinary), nil
	}
	return "", fmt.Errorf("secret %q is empty", secretID)
}
