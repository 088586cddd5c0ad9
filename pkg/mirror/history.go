package mirror

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashgraph-online/ledger-client-go/pkg/runninghash"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

// ParseConsensusTimestamp parses the "seconds.nanoseconds" form the REST API
// uses.
func ParseConsensusTimestamp(value string) (time.Time, error) {
	secondsPart, nanosPart, _ := strings.Cut(strings.TrimSpace(value), ".")
	seconds, err := strconv.ParseInt(secondsPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid consensus timestamp %q: %w", value, err)
	}

	var nanos int64
	if nanosPart != "" {
		if len(nanosPart) > 9 {
			return time.Time{}, fmt.Errorf("invalid consensus timestamp %q: too many fractional digits", value)
		}
		if strings.TrimLeft(nanosPart, "0123456789") != "" {
			return time.Time{}, fmt.Errorf("invalid consensus timestamp %q: fraction must be digits", value)
		}
		nanos, err = strconv.ParseInt(nanosPart+strings.Repeat("0", 9-len(nanosPart)), 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid consensus timestamp %q: %w", value, err)
		}
	}
	return time.Unix(seconds, nanos).UTC(), nil
}

// FormatConsensusTimestamp is the inverse of ParseConsensusTimestamp.
func FormatConsensusTimestamp(value time.Time) string {
	return fmt.Sprintf("%d.%09d", value.Unix(), value.Nanosecond())
}

// Verifiable converts a REST topic message into the form the running hash
// verifier checks.
func (m TopicMessage) Verifiable() (runninghash.Message, error) {
	topicID, err := hedera.TopicIDFromString(m.TopicID)
	if err != nil {
		return runninghash.Message{}, fmt.Errorf("invalid topic ID %q: %w", m.TopicID, err)
	}
	timestamp, err := ParseConsensusTimestamp(m.ConsensusTimestamp)
	if err != nil {
		return runninghash.Message{}, err
	}
	contents, err := base64.StdEncoding.DecodeString(m.Message)
	if err != nil {
		return runninghash.Message{}, fmt.Errorf("failed to decode message contents: %w", err)
	}
	runningHash, err := base64.StdEncoding.DecodeString(m.RunningHash)
	if err != nil {
		return runninghash.Message{}, fmt.Errorf("failed to decode running hash: %w", err)
	}
	if m.SequenceNumber <= 0 {
		return runninghash.Message{}, fmt.Errorf("invalid sequence number %d", m.SequenceNumber)
	}

	return runninghash.Message{
		TopicID:            topicID,
		ConsensusTimestamp: timestamp,
		SequenceNumber:     uint64(m.SequenceNumber),
		Contents:           contents,
		RunningHash:        runningHash,
		RunningHashVersion: uint64(m.RunningHashVersion),
	}, nil
}

// GetCheckpoint returns the chain position after message sequence, read from
// the mirror node. Sequence zero is the genesis state.
func (c *Client) GetCheckpoint(ctx context.Context, topicID hedera.TopicID, sequence uint64) (runninghash.Checkpoint, error) {
	if sequence == 0 {
		return runninghash.Genesis(), nil
	}

	message, err := c.GetTopicMessageBySequence(ctx, topicID, sequence)
	if err != nil {
		return runninghash.Checkpoint{}, err
	}
	if message == nil {
		return runninghash.Checkpoint{}, fmt.Errorf("topic %s has no message %d", topicID.String(), sequence)
	}

	runningHash, err := base64.StdEncoding.DecodeString(message.RunningHash)
	if err != nil {
		return runninghash.Checkpoint{}, fmt.Errorf("failed to decode running hash: %w", err)
	}
	if len(runningHash) != runninghash.HashSize {
		return runninghash.Checkpoint{}, fmt.Errorf("%w: running hash of message %d has %d bytes",
			runninghash.ErrInvalidCheckpoint, sequence, len(runningHash))
	}
	return runninghash.Checkpoint{SequenceNumber: sequence, RunningHash: runningHash}, nil
}

type HistoryOptions struct {
	// After is the last sequence number already trusted; verification starts
	// at After+1. Zero verifies from the first message.
	After uint64
	Limit int
}

type HistoryResult struct {
	Messages   []runninghash.Message
	Checkpoint runninghash.Checkpoint
}

// VerifyTopicHistory fetches topic messages in order and checks that they
// form an unbroken chain from the After checkpoint. It stops at the first
// violation and returns the messages verified so far with the error.
func (c *Client) VerifyTopicHistory(ctx context.Context, topicID hedera.TopicID, options HistoryOptions) (HistoryResult, error) {
	anchor, err := c.GetCheckpoint(ctx, topicID, options.After)
	if err != nil {
		return HistoryResult{}, fmt.Errorf("failed to anchor history verification: %w", err)
	}
	verifier, err := runninghash.NewVerifierFrom(topicID, anchor)
	if err != nil {
		return HistoryResult{}, err
	}

	messages, err := c.GetTopicMessages(ctx, topicID, MessageQueryOptions{
		SequenceNumber: fmt.Sprintf("gt:%d", options.After),
		Limit:          options.Limit,
		Order:          "asc",
	})
	if err != nil {
		return HistoryResult{}, err
	}

	result := HistoryResult{Checkpoint: verifier.Checkpoint()}
	for _, raw := range messages {
		message, err := raw.Verifiable()
		if err != nil {
			return result, err
		}
		if err := verifier.Verify(message); err != nil {
			return result, err
		}
		result.Messages = append(result.Messages, message)
		result.Checkpoint = verifier.Checkpoint()
	}

	c.logger.Debug().
		Str("topic_id", topicID.String()).
		Int("verified", len(result.Messages)).
		Uint64("sequence", result.Checkpoint.SequenceNumber).
		Msg("topic history verified")
	return result, nil
}
