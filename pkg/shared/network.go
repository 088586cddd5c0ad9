package shared

import (
	"fmt"
	"strings"

	"github.com/hashgraph-online/ledger-client-go/pkg/network"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

const (
	NetworkMainnet    = "mainnet"
	NetworkTestnet    = "testnet"
	NetworkPreviewnet = "previewnet"
)

var mirrorBaseURLs = map[string]string{
	NetworkMainnet:    "https://mainnet-public.mirrornode.hedera.com",
	NetworkTestnet:    "https://testnet.mirrornode.hedera.com",
	NetworkPreviewnet: "https://previewnet.mirrornode.hedera.com",
}

// NormalizeNetwork lowercases and validates a network name. Empty means
// testnet.
func NormalizeNetwork(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return NetworkTestnet, nil
	}

	switch normalized {
	case NetworkMainnet, NetworkTestnet, NetworkPreviewnet:
		return normalized, nil
	default:
		return "", fmt.Errorf("unsupported network %q", name)
	}
}

// NewHederaClient creates a new HederaClient.
func NewHederaClient(name string) (*hedera.Client, error) {
	normalized, err := NormalizeNetwork(name)
	if err != nil {
		return nil, err
	}

	switch normalized {
	case NetworkMainnet:
		return hedera.ClientForMainnet(), nil
	case NetworkPreviewnet:
		return hedera.ClientForPreviewnet(), nil
	default:
		return hedera.ClientForTestnet(), nil
	}
}

// DefaultNodes returns the published address book of a named network.
func DefaultNodes(name string) ([]network.Node, error) {
	client, err := NewHederaClient(name)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	nodes := network.NodesFromAddressBook(client.GetNetwork())
	if len(nodes) == 0 {
		return nil, fmt.Errorf("network %q has an empty address book", name)
	}
	return nodes, nil
}

// DefaultMirrorAddress returns the mirror node gRPC endpoint of a named
// network.
func DefaultMirrorAddress(name string) (string, error) {
	client, err := NewHederaClient(name)
	if err != nil {
		return "", err
	}
	defer client.Close()

	mirrors := client.GetMirrorNetwork()
	if len(mirrors) == 0 {
		return "", fmt.Errorf("network %q has no mirror node", name)
	}
	return mirrors[0], nil
}

// DefaultMirrorBaseURL returns the mirror node REST base URL of a named
// network.
func DefaultMirrorBaseURL(name string) (string, error) {
	normalized, err := NormalizeNetwork(name)
	if err != nil {
		return "", err
	}
	return mirrorBaseURLs[normalized], nil
}
