// Package shared holds the configuration plumbing every other package
// receives explicitly: network names and default address books, operator
// credentials from the environment (and .env files), network files read with
// viper, key parsing, and logger construction.
//
// Nothing here is global. Callers build a config value once and pass it to
// the constructors that need it.
//
// # Environment Variables
//
//	HEDERA_NETWORK / NETWORK             mainnet, testnet or previewnet
//	HEDERA_ACCOUNT_ID / OPERATOR_ID      operator account
//	HEDERA_PRIVATE_KEY / OPERATOR_KEY    operator key (DER or hex)
//	<NETWORK>_HEDERA_ACCOUNT_ID          per-network override, e.g. TESTNET_
//	MIRROR_NODE_ADDRESS                  mirror gRPC endpoint override
//	CONFIG_FILE                          network file read by LoadNetworkConfig
//	LOG_LEVEL                            console logger level, default info
package shared
