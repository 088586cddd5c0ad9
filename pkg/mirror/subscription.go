package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashgraph-online/ledger-client-go/pkg/runninghash"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/rs/zerolog"
)

var (
	ErrStreamDisconnected = errors.New("mirror stream disconnected")
	ErrAnchorRequired     = errors.New("a verifier anchor is required when starting after the first message")
	ErrHandlerPanic       = errors.New("subscription handler panicked")
)

// LastVerified is the newest message a subscription verified.
type LastVerified struct {
	Checkpoint         runninghash.Checkpoint
	ConsensusTimestamp time.Time
}

// ResumeTime is the start time that continues right after this message.
func (l LastVerified) ResumeTime() time.Time {
	if l.ConsensusTimestamp.IsZero() {
		return time.Time{}
	}
	return l.ConsensusTimestamp.Add(time.Nanosecond)
}

// StreamDisconnectedError reports a stream that broke before it was
// cancelled or ended.
type StreamDisconnectedError struct {
	TopicID      hedera.TopicID
	LastVerified LastVerified
	Err          error
}

func (e *StreamDisconnectedError) Error() string {
	return fmt.Sprintf("mirror stream for topic %s disconnected after sequence %d: %v",
		e.TopicID.String(), e.LastVerified.Checkpoint.SequenceNumber, e.Err)
}

func (e *StreamDisconnectedError) Is(target error) bool {
	return target == ErrStreamDisconnected
}

func (e *StreamDisconnectedError) Unwrap() error {
	return e.Err
}

// ResumeTime is the start time for a resubscription that neither skips nor
// repeats a verified message.
func (e *StreamDisconnectedError) ResumeTime() time.Time {
	return e.LastVerified.ResumeTime()
}

type SubscribeOptions struct {
	// StartTime is inclusive. Zero starts at the first message.
	StartTime time.Time
	// EndTime is exclusive. Zero keeps the stream open.
	EndTime time.Time
	// Limit ends the subscription after that many verified messages.
	Limit uint64
	// Anchor is the trusted chain state right before the first expected
	// message. Required when StartTime is set.
	Anchor *runninghash.Checkpoint
}

type MessageHandler func(message ConsensusMessage)

type ErrorHandler func(err error)

type SubscriberConfig struct {
	Opener StreamOpener
	Logger *zerolog.Logger
}

// Subscriber opens verified topic subscriptions.
type Subscriber struct {
	opener StreamOpener
	logger zerolog.Logger
}

// NewSubscriber creates a new Subscriber.
func NewSubscriber(config SubscriberConfig) (*Subscriber, error) {
	if config.Opener == nil {
		return nil, fmt.Errorf("stream opener is required")
	}
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	return &Subscriber{opener: config.Opener, logger: logger}, nil
}

// Subscribe opens a stream for topicID and delivers each verified message to
// onMessage from a dedicated goroutine. onError receives chain violations
// (the stream continues) and the terminal disconnect or handler panic.
func (s *Subscriber) Subscribe(
	ctx context.Context,
	topicID hedera.TopicID,
	options SubscribeOptions,
	onMessage MessageHandler,
	onError ErrorHandler,
) (*SubscriptionHandle, error) {
	if onMessage == nil {
		return nil, fmt.Errorf("message handler is required")
	}
	if onError == nil {
		onError = func(error) {}
	}

	var verifier *runninghash.Verifier
	switch {
	case options.Anchor != nil:
		anchored, err := runninghash.NewVerifierFrom(topicID, *options.Anchor)
		if err != nil {
			return nil, err
		}
		verifier = anchored
	case !options.StartTime.IsZero() && options.StartTime.After(time.Unix(0, 0)):
		return nil, ErrAnchorRequired
	default:
		verifier = runninghash.NewVerifier(topicID)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := s.opener.OpenTopicStream(streamCtx, EncodeTopicQuery(topicID, options))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topicID.String(), err)
	}

	handle := &SubscriptionHandle{
		topicID:  topicID,
		options:  options,
		verifier: verifier,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	handle.last.Checkpoint = verifier.Checkpoint()

	logger := s.logger.With().Str("topic_id", topicID.String()).Logger()
	logger.Info().Time("start_time", options.StartTime).Msg("topic subscription opened")

	go handle.run(streamCtx, stream, onMessage, onError, logger)
	return handle, nil
}

// SubscriptionHandle controls a running subscription.
type SubscriptionHandle struct {
	topicID  hedera.TopicID
	options  SubscribeOptions
	verifier *runninghash.Verifier
	cancel   context.CancelFunc
	done     chan struct{}

	cancelled atomic.Bool
	delivered atomic.Uint64

	mutex sync.Mutex
	last  LastVerified
	err   error
}

// Cancel stops deliveries and releases the stream. It does not wait and is
// safe to call from inside a handler.
func (h *SubscriptionHandle) Cancel() {
	h.cancelled.Store(true)
	h.cancel()
}

// Done is closed once the subscription goroutine has exited and the stream
// is released.
func (h *SubscriptionHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the subscription ends and returns its terminal error:
// nil after Cancel or a clean end.
func (h *SubscriptionHandle) Wait() error {
	<-h.done
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.err
}

func (h *SubscriptionHandle) LastVerified() LastVerified {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.last
}

// Delivered returns how many messages reached the message handler.
func (h *SubscriptionHandle) Delivered() uint64 {
	return h.delivered.Load()
}

// ResumeOptions returns options that continue this subscription right after
// the last verified message, anchored at its chain state.
func (h *SubscriptionHandle) ResumeOptions() SubscribeOptions {
	last := h.LastVerified()
	options := h.options
	if !last.ConsensusTimestamp.IsZero() {
		options.StartTime = last.ResumeTime()
	}
	checkpoint := last.Checkpoint
	options.Anchor = &checkpoint
	if options.Limit > 0 {
		delivered := h.Delivered()
		if delivered >= options.Limit {
			options.Limit = 0
		} else {
			options.Limit -= delivered
		}
	}
	return options
}

func (h *SubscriptionHandle) run(
	ctx context.Context,
	stream Stream,
	onMessage MessageHandler,
	onError ErrorHandler,
	logger zerolog.Logger,
) {
	defer close(h.done)
	defer h.cancel()
	defer stream.Close()

	for {
		raw, err := stream.Recv()
		if h.stopped(ctx) {
			logger.Info().Msg("topic subscription cancelled")
			return
		}
		if errors.Is(err, io.EOF) {
			logger.Info().Uint64("delivered", h.Delivered()).Msg("topic stream ended")
			return
		}
		if err != nil {
			disconnect := &StreamDisconnectedError{TopicID: h.topicID, LastVerified: h.LastVerified(), Err: err}
			logger.Warn().Err(err).Msg("topic stream disconnected")
			h.finish(disconnect)
			h.report(onError, disconnect, logger)
			return
		}

		message, err := DecodeTopicResponse(h.topicID, raw)
		if err != nil {
			h.report(onError, err, logger)
			continue
		}
		if err := h.verifier.Verify(message.Verifiable()); err != nil {
			logger.Warn().Err(err).Uint64("sequence", message.SequenceNumber).Msg("topic message rejected")
			h.report(onError, err, logger)
			continue
		}

		h.mutex.Lock()
		h.last = LastVerified{Checkpoint: h.verifier.Checkpoint(), ConsensusTimestamp: message.ConsensusTimestamp}
		h.mutex.Unlock()

		if h.stopped(ctx) {
			return
		}
		if panicErr := deliver(onMessage, message); panicErr != nil {
			logger.Error().Err(panicErr).Msg("topic message handler panicked")
			h.finish(panicErr)
			h.report(onError, panicErr, logger)
			return
		}

		if delivered := h.delivered.Add(1); h.options.Limit > 0 && delivered >= h.options.Limit {
			logger.Info().Uint64("delivered", delivered).Msg("topic subscription limit reached")
			return
		}
	}
}

func (h *SubscriptionHandle) stopped(ctx context.Context) bool {
	return h.cancelled.Load() || ctx.Err() != nil
}

func (h *SubscriptionHandle) finish(err error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.err = err
}

// report hands err to onError; a panicking error handler is logged and
// swallowed so the stream is still released.
func (h *SubscriptionHandle) report(onError ErrorHandler, err error, logger zerolog.Logger) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error().Interface("panic", recovered).Msg("topic error handler panicked")
		}
	}()
	onError(err)
}

func deliver(onMessage MessageHandler, message ConsensusMessage) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w at sequence %d: %v", ErrHandlerPanic, message.SequenceNumber, recovered)
		}
	}()
	onMessage(message)
	return nil
}
