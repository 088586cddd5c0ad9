package runninghash

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

const (
	HashSize = sha512.Size384

	Version2 uint64 = 2
	Version3 uint64 = 3
)

// Message is the part of a topic message the running hash covers.
type Message struct {
	TopicID            hedera.TopicID
	ConsensusTimestamp time.Time
	SequenceNumber     uint64
	Contents           []byte
	RunningHash        []byte
	RunningHashVersion uint64
}

// Checkpoint is a verified position in a topic's chain.
type Checkpoint struct {
	SequenceNumber uint64
	RunningHash    []byte
}

// Genesis is the state before the first message: sequence 0 and an all-zero
// hash.
func Genesis() Checkpoint {
	return Checkpoint{RunningHash: make([]byte, HashSize)}
}

func (c Checkpoint) IsGenesis() bool {
	return c.SequenceNumber == 0
}

// Compute returns the running hash of message given the running hash of the
// message before it.
func Compute(prior []byte, message Message) ([]byte, error) {
	if len(prior) != HashSize {
		return nil, fmt.Errorf("prior running hash must be %d bytes, got %d", HashSize, len(prior))
	}

	var contents []byte
	switch message.RunningHashVersion {
	case Version2:
		contents = message.Contents
	case Version3:
		digest := sha512.Sum384(message.Contents)
		contents = digest[:]
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, message.RunningHashVersion)
	}

	timestamp := message.ConsensusTimestamp
	buffer := make([]byte, 0, HashSize+8*6+4+len(contents))
	buffer = append(buffer, prior...)
	buffer = binary.BigEndian.AppendUint64(buffer, message.RunningHashVersion)
	buffer = binary.BigEndian.AppendUint64(buffer, message.TopicID.Shard)
	buffer = binary.BigEndian.AppendUint64(buffer, message.TopicID.Realm)
	buffer = binary.BigEndian.AppendUint64(buffer, message.TopicID.Topic)
	buffer = binary.BigEndian.AppendUint64(buffer, uint64(timestamp.Unix()))
	buffer = binary.BigEndian.AppendUint32(buffer, uint32(int32(timestamp.Nanosecond())))
	buffer = binary.BigEndian.AppendUint64(buffer, message.SequenceNumber)
	buffer = append(buffer, contents...)

	digest := sha512.Sum384(buffer)
	return digest[:], nil
}

// Chain fills in SequenceNumber and RunningHash for contents published in
// order after start. It produces genuine chains for fixtures and simulators.
func Chain(topicID hedera.TopicID, start Checkpoint, version uint64, timestamps []time.Time, contents [][]byte) ([]Message, error) {
	if len(timestamps) != len(contents) {
		return nil, fmt.Errorf("got %d timestamps for %d messages", len(timestamps), len(contents))
	}

	prior := start.RunningHash
	if start.IsGenesis() && len(prior) == 0 {
		prior = Genesis().RunningHash
	}
	messages := make([]Message, 0, len(contents))
	for index, content := range contents {
		message := Message{
			TopicID:            topicID,
			ConsensusTimestamp: timestamps[index],
			SequenceNumber:     start.SequenceNumber + uint64(index) + 1,
			Contents:           content,
			RunningHashVersion: version,
		}
		hash, err := Compute(prior, message)
		if err != nil {
			return nil, err
		}
		message.RunningHash = hash
		messages = append(messages, message)
		prior = hash
	}
	return messages, nil
}
