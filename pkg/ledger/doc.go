// Package ledger wires the node pool, receipt poller and mirror clients into
// one explicitly configured Client. Nothing is global: every Client owns its
// operator, network and connections, and several can coexist in a process.
//
// A typical transfer:
//
//	client, err := ledger.ClientFromEnv()
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	op, err := transaction.HbarTransfer(
//		transaction.AccountAmount{AccountID: client.OperatorAccountID(), Amount: -100},
//		transaction.AccountAmount{AccountID: recipient, Amount: 100},
//	)
//	if err != nil {
//		return err
//	}
//	tx, err := client.NewTransaction(op)
//	if err != nil {
//		return err
//	}
//	receipt, err := client.Execute(ctx, tx)
package ledger
