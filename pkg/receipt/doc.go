// Package receipt polls the network for the receipt of a submitted
// transaction until it reaches a terminal status.
//
// "Not yet known" answers (UNKNOWN, RECEIPT_NOT_FOUND, BUSY) are retried with
// exponential backoff inside a time or attempt budget. Every other status,
// success or failure, is terminal and returned after exactly one query.
// Transport failures fail over between nodes inside the network client and
// surface as network.ErrNetworkUnavailable.
package receipt
