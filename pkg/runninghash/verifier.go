package runninghash

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

// Verifier checks that each message extends the chain of one topic. It is
// safe for concurrent use.
type Verifier struct {
	mutex         sync.Mutex
	topicID       hedera.TopicID
	state         Checkpoint
	lastTimestamp time.Time
}

// NewVerifier creates a verifier that expects sequence number 1 next.
func NewVerifier(topicID hedera.TopicID) *Verifier {
	return &Verifier{topicID: topicID, state: Genesis()}
}

// NewVerifierFrom creates a verifier anchored at a trusted checkpoint, so a
// stream can be verified from the middle of the chain.
func NewVerifierFrom(topicID hedera.TopicID, checkpoint Checkpoint) (*Verifier, error) {
	if checkpoint.IsGenesis() && len(checkpoint.RunningHash) == 0 {
		return NewVerifier(topicID), nil
	}
	if len(checkpoint.RunningHash) != HashSize {
		return nil, fmt.Errorf("%w: running hash must be %d bytes, got %d",
			ErrInvalidCheckpoint, HashSize, len(checkpoint.RunningHash))
	}
	return &Verifier{
		topicID: topicID,
		state: Checkpoint{
			SequenceNumber: checkpoint.SequenceNumber,
			RunningHash:    bytes.Clone(checkpoint.RunningHash),
		},
	}, nil
}

func (v *Verifier) TopicID() hedera.TopicID {
	return v.topicID
}

// Verify checks message against the last verified state and advances on
// success. On failure the state is left untouched.
func (v *Verifier) Verify(message Message) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	expected := v.state.SequenceNumber + 1
	violation := func(reason Reason, err error) error {
		return &ChainIntegrityError{
			TopicID:        message.TopicID,
			SequenceNumber: message.SequenceNumber,
			Expected:       expected,
			Reason:         reason,
			Err:            err,
		}
	}

	if message.TopicID.Shard != v.topicID.Shard ||
		message.TopicID.Realm != v.topicID.Realm ||
		message.TopicID.Topic != v.topicID.Topic {
		return violation(ReasonWrongTopic, fmt.Errorf("verifier tracks topic %s", v.topicID.String()))
	}

	switch {
	case message.SequenceNumber == v.state.SequenceNumber && message.SequenceNumber != 0:
		return violation(ReasonDuplicate, nil)
	case message.SequenceNumber < expected:
		return violation(ReasonOutOfOrder, nil)
	case message.SequenceNumber > expected:
		return violation(ReasonGap, nil)
	}

	computed, err := Compute(v.state.RunningHash, message)
	if err != nil {
		return violation(ReasonUnsupportedVersion, err)
	}
	if !bytes.Equal(computed, message.RunningHash) {
		return violation(ReasonHashMismatch, nil)
	}

	v.state = Checkpoint{SequenceNumber: message.SequenceNumber, RunningHash: computed}
	v.lastTimestamp = message.ConsensusTimestamp
	return nil
}

// Checkpoint returns the last verified state.
func (v *Verifier) Checkpoint() Checkpoint {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return Checkpoint{SequenceNumber: v.state.SequenceNumber, RunningHash: bytes.Clone(v.state.RunningHash)}
}

// LastTimestamp returns the consensus timestamp of the last verified message,
// or the zero time when nothing was verified yet.
func (v *Verifier) LastTimestamp() time.Time {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.lastTimestamp
}
