package runninghash

import (
	"errors"
	"fmt"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

var (
	ErrUnsupportedVersion      = errors.New("unsupported running hash version")
	ErrChainIntegrityViolation = errors.New("running hash chain integrity violation")
	ErrInvalidCheckpoint       = errors.New("invalid running hash checkpoint")
)

type Reason string

const (
	ReasonGap                Reason = "gap"
	ReasonDuplicate          Reason = "duplicate"
	ReasonOutOfOrder         Reason = "out-of-order"
	ReasonHashMismatch       Reason = "hash-mismatch"
	ReasonWrongTopic         Reason = "wrong-topic"
	ReasonUnsupportedVersion Reason = "unsupported-version"
)

// ChainIntegrityError describes a message that does not extend the verified
// chain. It matches ErrChainIntegrityViolation with errors.Is.
type ChainIntegrityError struct {
	TopicID        hedera.TopicID
	SequenceNumber uint64
	Expected       uint64
	Reason         Reason
	Err            error
}

func (e *ChainIntegrityError) Error() string {
	message := fmt.Sprintf(
		"chain integrity violation on topic %s at sequence %d (expected %d): %s",
		e.TopicID.String(),
		e.SequenceNumber,
		e.Expected,
		e.Reason,
	)
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *ChainIntegrityError) Is(target error) bool {
	return target == ErrChainIntegrityViolation
}

func (e *ChainIntegrityError) Unwrap() error {
	return e.Err
}
