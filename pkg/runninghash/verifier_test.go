package runninghash

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

var testTopic = hedera.TopicID{Shard: 0, Realm: 0, Topic: 1234}

func genuineChain(t *testing.T, count int, version uint64) []Message {
	t.Helper()
	base := time.Unix(1_700_000_000, 0).UTC()
	timestamps := make([]time.Time, count)
	contents := make([][]byte, count)
	for index := range count {
		timestamps[index] = base.Add(time.Duration(index) * 1500 * time.Millisecond)
		contents[index] = []byte(fmt.Sprintf("message-%d", index+1))
	}
	messages, err := Chain(testTopic, Genesis(), version, timestamps, contents)
	if err != nil {
		t.Fatalf("failed to build chain: %v", err)
	}
	return messages
}

func TestVerifyGenuineChain(t *testing.T) {
	for _, version := range []uint64{Version2, Version3} {
		t.Run(fmt.Sprintf("version %d", version), func(t *testing.T) {
			messages := genuineChain(t, 10, version)
			verifier := NewVerifier(testTopic)
			for _, message := range messages {
				if err := verifier.Verify(message); err != nil {
					t.Fatalf("message %d failed verification: %v", message.SequenceNumber, err)
				}
			}
			checkpoint := verifier.Checkpoint()
			if checkpoint.SequenceNumber != 10 {
				t.Fatalf("expected checkpoint at 10, got %d", checkpoint.SequenceNumber)
			}
			if !bytes.Equal(checkpoint.RunningHash, messages[9].RunningHash) {
				t.Fatalf("checkpoint hash does not match last message")
			}
			if !verifier.LastTimestamp().Equal(messages[9].ConsensusTimestamp) {
				t.Fatalf("unexpected last timestamp %s", verifier.LastTimestamp())
			}
		})
	}
}

func TestVersionsProduceDifferentHashes(t *testing.T) {
	v2 := genuineChain(t, 1, Version2)
	v3 := genuineChain(t, 1, Version3)
	if bytes.Equal(v2[0].RunningHash, v3[0].RunningHash) {
		t.Fatalf("expected version 2 and 3 hashes to differ")
	}
	if len(v3[0].RunningHash) != HashSize {
		t.Fatalf("expected %d byte hash, got %d", HashSize, len(v3[0].RunningHash))
	}
}

func TestByteFlipStopsChainAtCorruptedMessage(t *testing.T) {
	messages := genuineChain(t, 8, Version3)
	corrupted := messages[4]
	corrupted.Contents = bytes.Clone(corrupted.Contents)
	corrupted.Contents[0] ^= 0x01
	messages[4] = corrupted

	verifier := NewVerifier(testTopic)
	for _, message := range messages[:4] {
		if err := verifier.Verify(message); err != nil {
			t.Fatalf("message %d failed verification: %v", message.SequenceNumber, err)
		}
	}

	for _, message := range messages[4:] {
		err := verifier.Verify(message)
		if !errors.Is(err, ErrChainIntegrityViolation) {
			t.Fatalf("expected violation for message %d, got %v", message.SequenceNumber, err)
		}
	}

	var integrityErr *ChainIntegrityError
	if err := verifier.Verify(messages[4]); !errors.As(err, &integrityErr) || integrityErr.Reason != ReasonHashMismatch {
		t.Fatalf("expected hash mismatch, got %v", err)
	}
	if checkpoint := verifier.Checkpoint(); checkpoint.SequenceNumber != 4 {
		t.Fatalf("expected verifier to stay at 4, got %d", checkpoint.SequenceNumber)
	}
}

func TestOutOfOrderIsRejected(t *testing.T) {
	messages := genuineChain(t, 3, Version3)
	verifier := NewVerifier(testTopic)
	if err := verifier.Verify(messages[0]); err != nil {
		t.Fatalf("message 1 failed verification: %v", err)
	}

	var integrityErr *ChainIntegrityError
	if err := verifier.Verify(messages[2]); !errors.As(err, &integrityErr) || integrityErr.Reason != ReasonGap {
		t.Fatalf("expected gap violation for message 3, got %v", err)
	}
	if integrityErr.Expected != 2 {
		t.Fatalf("expected sequence 2 to be expected, got %d", integrityErr.Expected)
	}
	if checkpoint := verifier.Checkpoint(); checkpoint.SequenceNumber != 1 {
		t.Fatalf("expected verifier to stay at 1, got %d", checkpoint.SequenceNumber)
	}

	if err := verifier.Verify(messages[1]); err != nil {
		t.Fatalf("message 2 failed verification: %v", err)
	}
	if err := verifier.Verify(messages[2]); err != nil {
		t.Fatalf("message 3 failed verification after 2: %v", err)
	}
	if err := verifier.Verify(messages[0]); !errors.As(err, &integrityErr) || integrityErr.Reason != ReasonOutOfOrder {
		t.Fatalf("expected out-of-order violation for stale message, got %v", err)
	}
}

func TestDuplicateIsRejected(t *testing.T) {
	messages := genuineChain(t, 2, Version2)
	verifier := NewVerifier(testTopic)
	if err := verifier.Verify(messages[0]); err != nil {
		t.Fatalf("message 1 failed verification: %v", err)
	}

	var integrityErr *ChainIntegrityError
	if err := verifier.Verify(messages[0]); !errors.As(err, &integrityErr) || integrityErr.Reason != ReasonDuplicate {
		t.Fatalf("expected duplicate violation, got %v", err)
	}
}

func TestWrongTopicAndVersion(t *testing.T) {
	messages := genuineChain(t, 1, Version3)
	verifier := NewVerifier(hedera.TopicID{Topic: 99})

	var integrityErr *ChainIntegrityError
	if err := verifier.Verify(messages[0]); !errors.As(err, &integrityErr) || integrityErr.Reason != ReasonWrongTopic {
		t.Fatalf("expected wrong topic violation, got %v", err)
	}

	unsupported := messages[0]
	unsupported.RunningHashVersion = 1
	verifier = NewVerifier(testTopic)
	err := verifier.Verify(unsupported)
	if !errors.As(err, &integrityErr) || integrityErr.Reason != ReasonUnsupportedVersion {
		t.Fatalf("expected unsupported version violation, got %v", err)
	}
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected error to wrap ErrUnsupportedVersion, got %v", err)
	}
}

func TestNewVerifierFromCheckpoint(t *testing.T) {
	messages := genuineChain(t, 6, Version3)
	verifier, err := NewVerifierFrom(testTopic, Checkpoint{
		SequenceNumber: messages[2].SequenceNumber,
		RunningHash:    messages[2].RunningHash,
	})
	if err != nil {
		t.Fatalf("failed to anchor verifier: %v", err)
	}
	for _, message := range messages[3:] {
		if err := verifier.Verify(message); err != nil {
			t.Fatalf("message %d failed verification: %v", message.SequenceNumber, err)
		}
	}

	if _, err := NewVerifierFrom(testTopic, Checkpoint{SequenceNumber: 3, RunningHash: []byte{1, 2}}); !errors.Is(err, ErrInvalidCheckpoint) {
		t.Fatalf("expected ErrInvalidCheckpoint, got %v", err)
	}
}

func TestVerifierConcurrentReaders(t *testing.T) {
	messages := genuineChain(t, 50, Version3)
	verifier := NewVerifier(testTopic)

	var group sync.WaitGroup
	group.Add(1)
	go func() {
		defer group.Done()
		for range 200 {
			_ = verifier.Checkpoint()
		}
	}()
	for _, message := range messages {
		if err := verifier.Verify(message); err != nil {
			t.Fatalf("message %d failed verification: %v", message.SequenceNumber, err)
		}
	}
	group.Wait()
}
