// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

package util

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// DBPasswordEnv allows bypassing Secrets Manager lookups (e.g., smoketests
// and local runs). When set (even to an empty string), ResolveDBPassword
// returns the value directly.
const DBPasswordEnv = "TRACE_EXPORT_DB_PASSWORD_OVERRIDE" //nolint:gosec // env var name, not a credential

// GetPasswordFromSecretsManager retrieves the database password from AWS
// Secrets Manager. The secret JSON is expected to contain a "password" field.
func GetPasswordFromSecretsManager(ctx context.Context, secretName, region string) (string, error) {
	if secretName == "" {
		return "", fmt.Errorf("secret name is required for Secrets Manager")
	}
	if region == "" {
		return "", fmt.Errorf("region is required for Secrets Manager")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return "", fmt.Errorf("create AWS config: %w", err)
	}

	svc := secretsmanager.NewFromConfig(awsCfg)
	out, err := svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretName),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return "", fmt.Errorf("get secret value: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret string empty for %s", secretName)
	}

	var payload struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal([]byte(*out.SecretString), &payload); err != nil {
		return "", fmt.Errorf("parse secret json: %w", err)
	}
	if payload.Password == "" {
		return "", fmt.Errorf("password field empty in secret %s", secretName)
	}

	return payload.Password, nil
}

// ResolveDBPassword returns the database password. If DBPasswordEnv is set
// (even to an empty string), that value is returned. Otherwise the password
// is fetched from AWS Secrets Manager using the provided secret and region.
func ResolveDBPassword(ctx context.Context, secretName, region string) (string, error) {
	if pwd, ok := os.LookupEnv(DBPasswordEnv); ok {
		return pwd, nil
	}
	return GetPasswordFromSecretsManager(ctx, secretName, region)
}
