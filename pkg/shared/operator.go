package shared

import (
	"fmt"
	"strings"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

type OperatorConfig struct {
	AccountID     string
	PrivateKey    string
	Network       string
	MirrorAddress string
	ConfigFile    string
	LogLevel      string
}

// OperatorConfigFromEnv reads operator credentials from the environment,
// loading a .env file first when one is found. Per-network variables such as
// TESTNET_HEDERA_ACCOUNT_ID win over the generic ones.
func OperatorConfigFromEnv() (OperatorConfig, error) {
	loadDotEnvIfPresent()

	networkName := firstNonEmptyEnv("HEDERA_NETWORK", "NETWORK")
	if networkName == "" {
		networkName = NetworkTestnet
	}

	accountID := firstNonEmptyEnv("HEDERA_ACCOUNT_ID", "HEDERA_OPERATOR_ID", "ACCOUNT_ID", "OPERATOR_ID")
	privateKey := firstNonEmptyEnv("HEDERA_PRIVATE_KEY", "HEDERA_OPERATOR_KEY", "PRIVATE_KEY", "OPERATOR_KEY")

	if normalized, err := NormalizeNetwork(networkName); err == nil {
		prefix := strings.ToUpper(normalized) + "_"
		if scoped := firstNonEmptyEnv(prefix+"HEDERA_ACCOUNT_ID", prefix+"HEDERA_OPERATOR_ID", prefix+"OPERATOR_ID"); scoped != "" {
			accountID = scoped
		}
		if scoped := firstNonEmptyEnv(prefix+"HEDERA_PRIVATE_KEY", prefix+"HEDERA_OPERATOR_KEY", prefix+"OPERATOR_KEY"); scoped != "" {
			privateKey = scoped
		}
	}

	if accountID == "" {
		return OperatorConfig{}, fmt.Errorf("HEDERA_ACCOUNT_ID is required")
	}
	if privateKey == "" {
		return OperatorConfig{}, fmt.Errorf("HEDERA_PRIVATE_KEY is required")
	}

	return OperatorConfig{
		AccountID:     accountID,
		PrivateKey:    privateKey,
		Network:       networkName,
		MirrorAddress: firstNonEmptyEnv("MIRROR_NODE_ADDRESS"),
		ConfigFile:    firstNonEmptyEnv("CONFIG_FILE"),
		LogLevel:      firstNonEmptyEnv("LOG_LEVEL"),
	}, nil
}

// Credentials parses the operator account and key.
func (c OperatorConfig) Credentials() (hedera.AccountID, hedera.PrivateKey, error) {
	accountID, err := hedera.AccountIDFromString(strings.TrimSpace(c.AccountID))
	if err != nil {
		return hedera.AccountID{}, hedera.PrivateKey{}, fmt.Errorf("invalid operator account ID: %w", err)
	}
	privateKey, err := ParsePrivateKey(c.PrivateKey)
	if err != nil {
		return hedera.AccountID{}, hedera.PrivateKey{}, err
	}
	return accountID, privateKey, nil
}

// ParsePrivateKey accepts ED25519 or ECDSA keys in DER or raw hex form.
func ParsePrivateKey(raw string) (hedera.PrivateKey, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return hedera.PrivateKey{}, fmt.Errorf("private key cannot be empty")
	}

	parsers := []struct {
		name  string
		parse func(string) (hedera.PrivateKey, error)
	}{
		{"ED25519", hedera.PrivateKeyFromStringEd25519},
		{"ECDSA", hedera.PrivateKeyFromStringECDSA},
		{"DER", hedera.PrivateKeyFromString},
	}

	failures := make([]string, 0, len(parsers))
	for _, parser := range parsers {
		key, err := parser.parse(candidate)
		if err == nil {
			return key, nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", parser.name, err))
	}
	return hedera.PrivateKey{}, fmt.Errorf("failed to parse private key (%s)", strings.Join(failures, "; "))
}
