package shared

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

const testPrivateKey = "302e020100300506032b65700422042091132178e72057a1d7528025956fe39b0b847f200ab59b2fdd367017f3087137"

var operatorEnvKeys = []string{
	"HEDERA_NETWORK", "NETWORK",
	"HEDERA_ACCOUNT_ID", "HEDERA_OPERATOR_ID", "ACCOUNT_ID", "OPERATOR_ID",
	"HEDERA_PRIVATE_KEY", "HEDERA_OPERATOR_KEY", "PRIVATE_KEY", "OPERATOR_KEY",
	"MAINNET_HEDERA_ACCOUNT_ID", "MAINNET_HEDERA_PRIVATE_KEY",
	"TESTNET_HEDERA_ACCOUNT_ID", "TESTNET_HEDERA_PRIVATE_KEY",
	"PREVIEWNET_HEDERA_ACCOUNT_ID", "PREVIEWNET_HEDERA_PRIVATE_KEY",
	"MIRROR_NODE_ADDRESS", "CONFIG_FILE",
}

func resetOperatorEnv(t *testing.T) {
	t.Helper()
	dotenvLoadOnce = sync.Once{}
	dotenvLoadOnce.Do(func() {})
	for _, key := range operatorEnvKeys {
		t.Setenv(key, "")
	}
}

func TestOperatorConfigFromEnvRequiresCredentials(t *testing.T) {
	resetOperatorEnv(t)
	t.Setenv("HEDERA_PRIVATE_KEY", testPrivateKey)
	if _, err := OperatorConfigFromEnv(); err == nil {
		t.Fatal("expected error for missing account ID")
	}

	resetOperatorEnv(t)
	t.Setenv("HEDERA_ACCOUNT_ID", "0.0.12345")
	if _, err := OperatorConfigFromEnv(); err == nil {
		t.Fatal("expected error for missing private key")
	}
}

func TestOperatorConfigFromEnv(t *testing.T) {
	resetOperatorEnv(t)
	t.Setenv("HEDERA_ACCOUNT_ID", "0.0.12345")
	t.Setenv("HEDERA_PRIVATE_KEY", testPrivateKey)
	t.Setenv("MIRROR_NODE_ADDRESS", "localhost:5600")
	t.Setenv("CONFIG_FILE", "network.yaml")

	config, err := OperatorConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.AccountID != "0.0.12345" || config.Network != NetworkTestnet {
		t.Fatalf("unexpected config %+v", config)
	}
	if config.MirrorAddress != "localhost:5600" || config.ConfigFile != "network.yaml" {
		t.Fatalf("unexpected mirror or config file: %+v", config)
	}

	accountID, key, err := config.Credentials()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accountID.Account != 12345 || key.PublicKey().String() == "" {
		t.Fatalf("unexpected credentials %s", accountID)
	}
}

func TestOperatorConfigFromEnvScoped(t *testing.T) {
	cases := map[string]string{
		NetworkMainnet:    "MAINNET_HEDERA_ACCOUNT_ID",
		NetworkTestnet:    "TESTNET_HEDERA_ACCOUNT_ID",
		NetworkPreviewnet: "PREVIEWNET_HEDERA_ACCOUNT_ID",
	}
	for networkName, scopedKey := range cases {
		resetOperatorEnv(t)
		t.Setenv("HEDERA_NETWORK", networkName)
		t.Setenv("HEDERA_ACCOUNT_ID", "0.0.11111")
		t.Setenv("HEDERA_PRIVATE_KEY", testPrivateKey)
		t.Setenv(scopedKey, "0.0.99999")

		config, err := OperatorConfigFromEnv()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", networkName, err)
		}
		if config.AccountID != "0.0.99999" {
			t.Fatalf("%s: expected scoped account, got %q", networkName, config.AccountID)
		}
	}
}

func TestOperatorConfigFromEnvFallbackOperatorKeys(t *testing.T) {
	resetOperatorEnv(t)
	t.Setenv("OPERATOR_ID", "0.0.77777")
	t.Setenv("OPERATOR_KEY", testPrivateKey)

	config, err := OperatorConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.AccountID != "0.0.77777" {
		t.Fatalf("expected '0.0.77777', got %q", config.AccountID)
	}
}

func TestCredentialsRejectsBadAccount(t *testing.T) {
	config := OperatorConfig{AccountID: "not-an-account", PrivateKey: testPrivateKey}
	if _, _, err := config.Credentials(); err == nil {
		t.Fatal("expected error for invalid account")
	}
}

func TestParsePrivateKey(t *testing.T) {
	for _, input := range []string{"", "   ", "notavalidkey", "0xinvalidhex"} {
		if _, err := ParsePrivateKey(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}

	key, err := ParsePrivateKey(testPrivateKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.String() == "" {
		t.Fatal("expected non-empty key string")
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# comment\n\n_TEST_DOTENV_PLAIN=plain\nexport _TEST_DOTENV_EXPORT=exported\n" +
		"_TEST_DOTENV_DQ=\"double-quoted\"\n_TEST_DOTENV_SQ='single-quoted'\n1BAD=value\n=nokey\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	for _, key := range []string{"_TEST_DOTENV_PLAIN", "_TEST_DOTENV_EXPORT", "_TEST_DOTENV_DQ", "_TEST_DOTENV_SQ"} {
		defer os.Unsetenv(key)
	}

	if !loadDotEnvFile(envPath) {
		t.Fatal("expected loadDotEnvFile to return true")
	}
	expected := map[string]string{
		"_TEST_DOTENV_PLAIN":  "plain",
		"_TEST_DOTENV_EXPORT": "exported",
		"_TEST_DOTENV_DQ":     "double-quoted",
		"_TEST_DOTENV_SQ":     "single-quoted",
	}
	for key, value := range expected {
		if os.Getenv(key) != value {
			t.Fatalf("expected %s=%q, got %q", key, value, os.Getenv(key))
		}
	}
	if _, exists := os.LookupEnv("1BAD"); exists {
		t.Fatal("expected invalid key 1BAD to remain unset")
	}
}

func TestLoadDotEnvFileSkipsAlreadySet(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	t.Setenv("_TEST_DOTENV_PREEXIST", "original")
	if err := os.WriteFile(envPath, []byte("_TEST_DOTENV_PREEXIST=overridden\n"), 0o644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	if loadDotEnvFile(envPath) {
		t.Fatal("expected nothing to be loaded")
	}
	if os.Getenv("_TEST_DOTENV_PREEXIST") != "original" {
		t.Fatalf("expected 'original', got %q", os.Getenv("_TEST_DOTENV_PREEXIST"))
	}
	if loadDotEnvFile(filepath.Join(t.TempDir(), "missing")) {
		t.Fatal("expected false for a missing file")
	}
}

func TestIsValidEnvKey(t *testing.T) {
	for _, key := range []string{"A", "a_b", "A1", "_LEADING_UNDERSCORE"} {
		if !isValidEnvKey(key) {
			t.Fatalf("expected %q to be valid", key)
		}
	}
	for _, key := range []string{"", "1ABC", "A B", "A-B", "A.B"} {
		if isValidEnvKey(key) {
			t.Fatalf("expected %q to be invalid", key)
		}
	}
}
