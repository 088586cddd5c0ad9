package transaction

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

// TransactionID identifies a transaction by its payer and valid start time.
// Two IDs are equal when both fields are equal.
type TransactionID struct {
	Payer      hedera.AccountID
	ValidStart time.Time
}

// NewTransactionID creates a new TransactionID.
func NewTransactionID(payer hedera.AccountID, validStart time.Time) TransactionID {
	return TransactionID{
		Payer:      hedera.AccountID{Shard: payer.Shard, Realm: payer.Realm, Account: payer.Account},
		ValidStart: validStart.UTC(),
	}
}

// GenerateTransactionID creates an ID whose valid start lies a random 5-8
// seconds in the past, so nodes with a slightly slower clock still accept it.
func GenerateTransactionID(payer hedera.AccountID) TransactionID {
	backdate := 5*time.Second + rand.N(3*time.Second)
	return NewTransactionID(payer, time.Now().Add(-backdate))
}

// TransactionIDFromString parses the "0.0.5@1700000000.000000123" form.
func TransactionIDFromString(value string) (TransactionID, error) {
	payerPart, timePart, found := strings.Cut(strings.TrimSpace(value), "@")
	if !found {
		return TransactionID{}, fmt.Errorf("invalid transaction ID %q: missing @", value)
	}
	payer, err := hedera.AccountIDFromString(payerPart)
	if err != nil {
		return TransactionID{}, fmt.Errorf("invalid transaction ID payer: %w", err)
	}

	secondsPart, nanosPart, found := strings.Cut(timePart, ".")
	if !found {
		return TransactionID{}, fmt.Errorf("invalid transaction ID %q: missing nanoseconds", value)
	}
	seconds, err := strconv.ParseInt(secondsPart, 10, 64)
	if err != nil {
		return TransactionID{}, fmt.Errorf("invalid transaction ID seconds: %w", err)
	}
	nanos, err := strconv.ParseInt(nanosPart, 10, 64)
	if err != nil || nanos < 0 || nanos >= int64(time.Second) {
		return TransactionID{}, fmt.Errorf("invalid transaction ID nanoseconds %q", nanosPart)
	}

	return NewTransactionID(payer, time.Unix(seconds, nanos)), nil
}

// IsZero reports whether the ID has not been assigned.
func (id TransactionID) IsZero() bool {
	return id.ValidStart.IsZero() && id.Payer.Shard == 0 && id.Payer.Realm == 0 && id.Payer.Account == 0
}

// Equal reports whether both IDs name the same transaction.
func (id TransactionID) Equal(other TransactionID) bool {
	return id.Compare(other) == 0
}

// Compare orders IDs by payer shard, realm and number, then valid start.
func (id TransactionID) Compare(other TransactionID) int {
	if result := cmp.Compare(id.Payer.Shard, other.Payer.Shard); result != 0 {
		return result
	}
	if result := cmp.Compare(id.Payer.Realm, other.Payer.Realm); result != 0 {
		return result
	}
	if result := cmp.Compare(id.Payer.Account, other.Payer.Account); result != 0 {
		return result
	}
	return id.ValidStart.Compare(other.ValidStart)
}

func (id TransactionID) String() string {
	return fmt.Sprintf("%d.%d.%d@%d.%09d",
		id.Payer.Shard, id.Payer.Realm, id.Payer.Account,
		id.ValidStart.Unix(), id.ValidStart.Nanosecond())
}

// MirrorString returns the "0.0.5-1700000000-000000123" form used by the
// mirror node REST API.
func (id TransactionID) MirrorString() string {
	return fmt.Sprintf("%d.%d.%d-%d-%09d",
		id.Payer.Shard, id.Payer.Realm, id.Payer.Account,
		id.ValidStart.Unix(), id.ValidStart.Nanosecond())
}
