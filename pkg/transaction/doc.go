// Package transaction implements the ledger transaction lifecycle on the
// client side: building a transaction around an opaque operation payload,
// freezing it into one body per candidate node, collecting signatures from
// any number of parties (including parties that only ever see the body
// bytes), and submitting it through a network client with node failover.
//
// A Transaction moves through Building, Frozen, Submitted and Finalized. The
// body is immutable once frozen, signatures can be added until the
// transaction is submitted, and a submitted transaction is never sent again.
// Finalization happens only through a receipt poller; a Transaction never
// polls on its own.
//
// # Getting Started
//
//	tx := transaction.New(transaction.TopicMessageSubmit(topicID, []byte("hello")))
//	if err := tx.SetPayer(operatorID); err != nil {
//		return err
//	}
//	if err := tx.SetMemo("transfer test"); err != nil {
//		return err
//	}
//	if err := tx.Freeze(networkClient); err != nil {
//		return err
//	}
//	if err := tx.Sign(operatorKey); err != nil {
//		return err
//	}
//	response, err := tx.Submit(ctx, networkClient)
package transaction
