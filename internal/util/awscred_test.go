// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

package util

import (
	"context"
	"testing"
)

func TestResolveDBPassword_EnvOverride(t *testing.T) {
	t.Setenv(DBPasswordEnv, "override-password")

	pwd, err := ResolveDBPassword(context.Background(), "prod/trace-export/db", "us-east-1")
	if err != nil {
		t.Fatalf("ResolveDBPassword() error = %v", err)
	}
	if pwd != "override-password" {
		t.Errorf("ResolveDBPassword() = %q, want the env override", pwd)
	}
}

func TestResolveDBPassword_EmptyOverrideWins(t *testing.T) {
	// An override set to the empty string still bypasses Secrets Manager.
	t.Setenv(DBPasswordEnv, "")

	pwd, err := ResolveDBPassword(context.Background(), "prod/trace-export/db", "us-east-1")
	if err != nil {
		t.Fatalf("ResolveDBPassword() error = %v", err)
	}
	if pwd != "" {
		t.Errorf("ResolveDBPassword() = %q, want empty string", pwd)
	}
}

func TestGetPasswordFromSecretsManager_Validation(t *testing.T) {
	ctx := context.Background()

	if _, err := GetPasswordFromSecretsManager(ctx, "", "us-east-1"); err == nil {
		t.Error("empty secret name should fail")
	}
	if _, err := GetPasswordFromSecretsManager(ctx, "prod/trace-export/db", ""); err == nil {
		t.Error("empty region should fail")
	}
}
