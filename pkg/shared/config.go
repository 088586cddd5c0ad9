package shared

import (
	"fmt"
	"strings"

	"github.com/hashgraph-online/ledger-client-go/pkg/network"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/spf13/viper"
)

// NetworkConfig is a custom network read from a file.
type NetworkConfig struct {
	Nodes         []network.Node
	MirrorNetwork []string
	MirrorBaseURL string
	OperatorID    string
	OperatorKey   string
	NetworkName   string
}

// LoadNetworkConfig reads a JSON, YAML or TOML network file:
//
//	network:
//	  "0.testnet.hedera.com:50211": "0.0.3"
//	mirrorNetwork: ["testnet.mirrornode.hedera.com:443"]
//	mirrorBaseURL: "https://testnet.mirrornode.hedera.com"
//	operator:
//	  accountId: "0.0.1234"
//	  privateKey: "302e..."
func LoadNetworkConfig(path string) (NetworkConfig, error) {
	if strings.TrimSpace(path) == "" {
		return NetworkConfig{}, fmt.Errorf("config file path is required")
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	if err := reader.ReadInConfig(); err != nil {
		return NetworkConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// viper splits keys on dots, so dotted node addresses arrive as nested maps.
	book := map[string]hedera.AccountID{}
	rawNetwork, ok := reader.AllSettings()["network"].(map[string]any)
	if !ok {
		return NetworkConfig{}, fmt.Errorf("config file %s has no network section", path)
	}
	if err := collectNodes(book, "", rawNetwork); err != nil {
		return NetworkConfig{}, fmt.Errorf("invalid network section in %s: %w", path, err)
	}
	if len(book) == 0 {
		return NetworkConfig{}, fmt.Errorf("config file %s lists no nodes", path)
	}

	return NetworkConfig{
		Nodes:         network.NodesFromAddressBook(book),
		MirrorNetwork: reader.GetStringSlice("mirrorNetwork"),
		MirrorBaseURL: strings.TrimSpace(reader.GetString("mirrorBaseURL")),
		OperatorID:    strings.TrimSpace(reader.GetString("operator.accountId")),
		OperatorKey:   strings.TrimSpace(reader.GetString("operator.privateKey")),
		NetworkName:   strings.TrimSpace(reader.GetString("networkName")),
	}, nil
}

func collectNodes(book map[string]hedera.AccountID, prefix string, section map[string]any) error {
	for key, value := range section {
		address := key
		if prefix != "" {
			address = prefix + "." + key
		}

		switch typed := value.(type) {
		case map[string]any:
			if err := collectNodes(book, address, typed); err != nil {
				return err
			}
		case string:
			accountID, err := hedera.AccountIDFromString(strings.TrimSpace(typed))
			if err != nil {
				return fmt.Errorf("node %s: %w", address, err)
			}
			book[address] = accountID
		default:
			return fmt.Errorf("node %s: account must be a string, got %T", address, value)
		}
	}
	return nil
}
