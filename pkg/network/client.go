package network

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type nodeState struct {
	node           Node
	mutex          sync.Mutex
	channel        Channel
	unhealthyUntil atomic.Int64
	failures       atomic.Int32
}

type Client struct {
	nodes               []*nodeState
	byAccount           map[string]*nodeState
	dialer              Dialer
	cursor              atomic.Uint64
	maxNodeAttempts     int
	unhealthyBackoff    time.Duration
	maxUnhealthyBackoff time.Duration
	requestTimeout      time.Duration
	logger              zerolog.Logger
	now                 func() time.Time
}

// NewClient creates a new Client.
func NewClient(config Config) (*Client, error) {
	if len(config.Nodes) == 0 {
		return nil, ErrNoNodes
	}
	if config.Dialer == nil {
		return nil, fmt.Errorf("network dialer is required")
	}

	client := &Client{
		nodes:               make([]*nodeState, 0, len(config.Nodes)),
		byAccount:           make(map[string]*nodeState, len(config.Nodes)),
		dialer:              config.Dialer,
		maxNodeAttempts:     config.MaxNodeAttempts,
		unhealthyBackoff:    config.UnhealthyBackoff,
		maxUnhealthyBackoff: config.MaxUnhealthyBackoff,
		requestTimeout:      config.RequestTimeout,
		logger:              zerolog.Nop(),
		now:                 time.Now,
	}
	if config.Logger != nil {
		client.logger = config.Logger.With().Str("component", "network").Logger()
	}
	if client.maxNodeAttempts <= 0 {
		client.maxNodeAttempts = defaultMaxNodeAttempts
	}
	if client.unhealthyBackoff <= 0 {
		client.unhealthyBackoff = defaultUnhealthyBackoff
	}
	if client.maxUnhealthyBackoff < client.unhealthyBackoff {
		client.maxUnhealthyBackoff = defaultMaxUnhealthyBackoff
		if client.maxUnhealthyBackoff < client.unhealthyBackoff {
			client.maxUnhealthyBackoff = client.unhealthyBackoff
		}
	}
	if client.requestTimeout <= 0 {
		client.requestTimeout = defaultRequestTimeout
	}

	for _, node := range config.Nodes {
		if strings.TrimSpace(node.Address) == "" {
			return nil, fmt.Errorf("node %s has no address", node.AccountID.String())
		}
		key := node.AccountID.String()
		if _, exists := client.byAccount[key]; exists {
			return nil, fmt.Errorf("duplicate node account %s", key)
		}
		state := &nodeState{node: node}
		client.nodes = append(client.nodes, state)
		client.byAccount[key] = state
	}

	return client, nil
}

// Nodes returns the node pool in configuration order.
func (c *Client) Nodes() []Node {
	nodes := make([]Node, len(c.nodes))
	for index, state := range c.nodes {
		nodes[index] = state.node
	}
	return nodes
}

// Node returns the pool member with the given account.
func (c *Client) Node(accountID hedera.AccountID) (Node, bool) {
	state, ok := c.byAccount[accountID.String()]
	if !ok {
		return Node{}, false
	}
	return state.node, true
}

// Healthy reports whether the node is currently considered reachable.
func (c *Client) Healthy(accountID hedera.AccountID) bool {
	state, ok := c.byAccount[accountID.String()]
	if !ok {
		return false
	}
	return state.healthy(c.now())
}

// SelectNodes returns up to count nodes starting at a rotating position,
// healthy nodes first.
func (c *Client) SelectNodes(count int) []Node {
	if count <= 0 || count > len(c.nodes) {
		count = len(c.nodes)
	}
	states := c.rotation()
	nodes := make([]Node, 0, count)
	for _, state := range states[:count] {
		nodes = append(nodes, state.node)
	}
	return nodes
}

func (c *Client) rotation() []*nodeState {
	start := int((c.cursor.Add(1) - 1) % uint64(len(c.nodes)))
	now := c.now()

	healthy := make([]*nodeState, 0, len(c.nodes))
	unhealthy := make([]*nodeState, 0)
	for offset := range c.nodes {
		state := c.nodes[(start+offset)%len(c.nodes)]
		if state.healthy(now) {
			healthy = append(healthy, state)
		} else {
			unhealthy = append(unhealthy, state)
		}
	}
	return append(healthy, unhealthy...)
}

// Query sends the same request to up to MaxNodeAttempts nodes until one of
// them answers. The answering node and its raw response are returned.
func (c *Client) Query(ctx context.Context, method string, request []byte) (Node, []byte, error) {
	candidates := c.rotation()
	if len(candidates) > c.maxNodeAttempts {
		candidates = candidates[:c.maxNodeAttempts]
	}

	var lastErr error
	for attempt, state := range candidates {
		response, err := c.invoke(ctx, state, method, request)
		if err == nil {
			return state.node, response, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Node{}, nil, ctxErr
		}
		if !IsTransportError(err) {
			return state.node, nil, fmt.Errorf("query to node %s failed: %w", state.node.AccountID.String(), err)
		}
		lastErr = err
		c.logger.Debug().
			Str("method", method).
			Str("node", state.node.String()).
			Int("attempt", attempt+1).
			Err(err).
			Msg("query failed over to next node")
	}

	return Node{}, nil, fmt.Errorf("%w after %d node attempts: %w", ErrNetworkUnavailable, len(candidates), lastErr)
}

// Submit sends each payload to the node it is bound to, in order, until a
// node accepts it. Unreachable nodes are marked unhealthy; responses judged
// transient move on to the next payload without marking the node.
func (c *Client) Submit(
	ctx context.Context,
	method string,
	payloads []NodePayload,
	transient TransientResponse,
) (Node, []byte, error) {
	if len(payloads) == 0 {
		return Node{}, nil, fmt.Errorf("no payloads to submit")
	}

	states := make([]*nodeState, 0, len(payloads))
	for _, payload := range payloads {
		state, ok := c.byAccount[payload.Node.String()]
		if !ok {
			return Node{}, nil, fmt.Errorf("%w: %s", ErrUnknownNode, payload.Node.String())
		}
		states = append(states, state)
	}
	order := c.healthyFirst(len(states), func(index int) *nodeState { return states[index] })

	var lastErr error
	for _, index := range order {
		state := states[index]
		response, err := c.invoke(ctx, state, method, payloads[index].Payload)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Node{}, nil, ctxErr
			}
			if !IsTransportError(err) {
				return state.node, nil, fmt.Errorf("submit to node %s failed: %w", state.node.AccountID.String(), err)
			}
			lastErr = err
			c.logger.Debug().
				Str("method", method).
				Str("node", state.node.String()).
				Err(err).
				Msg("submit failed over to next node")
			continue
		}
		if transient != nil && transient(response) {
			lastErr = fmt.Errorf("node %s is busy", state.node.AccountID.String())
			c.logger.Debug().
				Str("method", method).
				Str("node", state.node.String()).
				Msg("node busy, trying next node")
			continue
		}
		return state.node, response, nil
	}

	return Node{}, nil, fmt.Errorf("%w after %d node attempts: %w", ErrNodeUnavailable, len(order), lastErr)
}

func (c *Client) healthyFirst(count int, at func(int) *nodeState) []int {
	now := c.now()
	order := make([]int, 0, count)
	deferred := make([]int, 0)
	for index := 0; index < count; index++ {
		if at(index).healthy(now) {
			order = append(order, index)
		} else {
			deferred = append(deferred, index)
		}
	}
	return append(order, deferred...)
}

func (c *Client) invoke(ctx context.Context, state *nodeState, method string, request []byte) ([]byte, error) {
	channel, err := c.channel(ctx, state)
	if err != nil {
		c.markUnhealthy(state, err)
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	response, err := channel.Invoke(attemptCtx, method, request)
	if err != nil {
		if ctx.Err() == nil && IsTransportError(err) {
			c.markUnhealthy(state, err)
		}
		return nil, err
	}
	c.markHealthy(state)
	return response, nil
}

func (c *Client) channel(ctx context.Context, state *nodeState) (Channel, error) {
	state.mutex.Lock()
	defer state.mutex.Unlock()

	if state.channel != nil {
		return state.channel, nil
	}
	channel, err := c.dialer(ctx, state.node)
	if err != nil {
		return nil, &dialError{node: state.node, err: err}
	}
	state.channel = channel
	return channel, nil
}

func (c *Client) markUnhealthy(state *nodeState, cause error) {
	failures := state.failures.Add(1)
	delay := c.unhealthyBackoff
	for step := int32(1); step < failures && delay < c.maxUnhealthyBackoff; step++ {
		delay *= 2
	}
	if delay > c.maxUnhealthyBackoff {
		delay = c.maxUnhealthyBackoff
	}
	state.unhealthyUntil.Store(c.now().Add(delay).UnixNano())

	c.logger.Warn().
		Str("node", state.node.String()).
		Int32("failures", failures).
		Dur("backoff", delay).
		Err(cause).
		Msg("node marked unhealthy")
}

func (c *Client) markHealthy(state *nodeState) {
	if state.failures.Swap(0) > 0 {
		c.logger.Info().Str("node", state.node.String()).Msg("node healthy again")
	}
	state.unhealthyUntil.Store(0)
}

// Close closes every channel that has been dialled.
func (c *Client) Close() error {
	var errs []error
	for _, state := range c.nodes {
		state.mutex.Lock()
		if state.channel != nil {
			if err := state.channel.Close(); err != nil {
				errs = append(errs, err)
			}
			state.channel = nil
		}
		state.mutex.Unlock()
	}
	return errors.Join(errs...)
}

func (s *nodeState) healthy(now time.Time) bool {
	return now.UnixNano() >= s.unhealthyUntil.Load()
}

type dialError struct {
	node Node
	err  error
}

func (e *dialError) Error() string {
	return fmt.Sprintf("failed to dial node %s: %v", e.node.String(), e.err)
}

func (e *dialError) Unwrap() error {
	return e.err
}

// IsTransportError reports whether err means the node could not be reached
// or did not answer in time, as opposed to answering with an error.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	var dialErr *dialError
	if errors.As(err, &dialErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	rpcStatus, ok := status.FromError(err)
	if !ok {
		return true
	}
	switch rpcStatus.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}
