// Package ledgerclient is a Go client for Hedera-style networks covering two
// protocol paths: the transaction lifecycle and verified topic streams.
//
// # Transactions
//
// A transaction is built from an operation, frozen into one body per node,
// signed by any number of parties (in process or through ToBytes/FromBytes),
// submitted with failover across its nodes, and finalized by polling its
// receipt with exponential backoff.
//
//   - pkg/transaction: TransactionID, operations, the Transaction state
//     machine and Receipt
//   - pkg/keys: signers, signature pairs and the per-key signature map
//   - pkg/network: the node pool with health marks and gRPC channels
//   - pkg/receipt: the receipt poller
//
// # Topic Streams
//
// Topic messages carry a running hash that chains each message to all prior
// ones. pkg/runninghash verifies that chain (versions 2 and 3), and
// pkg/mirror feeds the mirror node's subscribeTopic stream and REST history
// through it.
//
// # Getting Started
//
// pkg/ledger wires everything into one explicitly configured client:
//
//	client, err := ledger.ClientFromEnv()
//
// Runnable programs live under examples/.
//
// # Installation
//
//	go get github.com/hashgraph-online/ledger-client-go@latest
package ledgerclient
