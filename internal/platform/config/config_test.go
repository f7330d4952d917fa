package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "ecofashion-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "ecofashion-dev" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.Checkout.HoldTTL != defaultCheckoutHoldTTL {
		t.Errorf("unexpected default hold ttl: %s", cfg.Checkout.HoldTTL)
	}
	if cfg.Checkout.MaxCartItems != defaultCheckoutMaxCartItems {
		t.Errorf("unexpected default max cart items: %d", cfg.Checkout.MaxCartItems)
	}
	if cfg.Gateway.Version != defaultGatewayVersion {
		t.Errorf("unexpected default gateway version: %s", cfg.Gateway.Version)
	}
	if cfg.Gateway.Currency != defaultGatewayCurrency {
		t.Errorf("unexpected default gateway currency: %s", cfg.Gateway.Currency)
	}
	if cfg.Events.ProjectID != "ecofashion-dev" {
		t.Errorf("expected events project to default to firestore project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Events.Topic != defaultEventsTopic {
		t.Errorf("unexpected default events topic: %s", cfg.Events.Topic)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":            "9090",
		"API_SERVER_READ_TIMEOUT":    "20s",
		"API_FIRESTORE_PROJECT_ID":   "ecofashion-prod",
		"API_GATEWAY_MERCHANT_CODE":  "ECOFASH01",
		"API_GATEWAY_HASH_SECRET":    "secret://gateway/hash",
		"API_GATEWAY_PAYMENT_URL":    "https://pay.example.com/paymentv2/vpcpay.html",
		"API_GATEWAY_RETURN_URL":     "https://shop.example.com/payments/return",
		"API_CHECKOUT_HOLD_TTL":      "45m",
		"API_CHECKOUT_MAX_CART_ITEMS": "50",
		"API_AUTH_SIGNING_KEY":       "sm://auth/signing-key",
		"API_EVENTS_ENABLED":         "true",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		switch ref {
		case "secret://gateway/hash":
			return "hash-secret-value", nil
		case "secret://auth/signing-key":
			return "signing-key-value", nil
		default:
			return "", errors.New("unknown ref")
		}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Gateway.HashSecret != "hash-secret-value" {
		t.Errorf("expected gateway hash secret resolved, got %q", cfg.Gateway.HashSecret)
	}
	if cfg.Auth.SigningKey != "signing-key-value" {
		t.Errorf("expected sm:// reference normalised and resolved, got %q", cfg.Auth.SigningKey)
	}
	if cfg.Checkout.HoldTTL != 45*time.Minute {
		t.Errorf("unexpected hold ttl: %s", cfg.Checkout.HoldTTL)
	}
	if cfg.Checkout.MaxCartItems != 50 {
		t.Errorf("unexpected max cart items: %d", cfg.Checkout.MaxCartItems)
	}
	if !cfg.Events.Enabled {
		t.Errorf("expected events enabled")
	}
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"API_CHECKOUT_HOLD_TTL": "-5m",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}

	fields := verr.Fields()
	want := map[string]bool{"Firestore.ProjectID": false, "Checkout.HoldTTL": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected missing field %s in %v", field, fields)
		}
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "ecofashion-dev",
		"API_GATEWAY_HASH_SECRET":  "secret://gateway/hash",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		return "", errors.New("permission denied")
	})

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err == nil {
		t.Fatalf("expected secret resolution error")
	}

	var serr *SecretError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SecretError, got %T: %v", err, err)
	}
	if serr.Ref != "secret://gateway/hash" {
		t.Errorf("unexpected ref: %s", serr.Ref)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	contents := "# local overrides\nexport API_FIRESTORE_PROJECT_ID=ecofashion-local\nAPI_SERVER_PORT=\"7070\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(path))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Firestore.ProjectID != "ecofashion-local" {
		t.Errorf("unexpected project from dotenv: %s", cfg.Firestore.ProjectID)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("unexpected port from dotenv: %s", cfg.Server.Port)
	}
}
