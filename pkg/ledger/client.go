package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashgraph-online/ledger-client-go/pkg/keys"
	"github.com/hashgraph-online/ledger-client-go/pkg/mirror"
	"github.com/hashgraph-online/ledger-client-go/pkg/network"
	"github.com/hashgraph-online/ledger-client-go/pkg/receipt"
	"github.com/hashgraph-online/ledger-client-go/pkg/shared"
	"github.com/hashgraph-online/ledger-client-go/pkg/transaction"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

type Client struct {
	networkName string
	operatorID  hedera.AccountID
	operatorKey hedera.PrivateKey
	hasOperator bool

	network    *network.Client
	poller     *receipt.Poller
	mirror     *mirror.Client
	subscriber *mirror.Subscriber
	mirrorConn *grpc.ClientConn
	logger     zerolog.Logger
}

// ClientFromEnv builds a Client from the operator environment variables and
// an optional CONFIG_FILE network description.
func ClientFromEnv() (*Client, error) {
	operator, err := shared.OperatorConfigFromEnv()
	if err != nil {
		return nil, err
	}
	logger := shared.NewLogger(operator.LogLevel)
	return NewClient(ClientConfig{
		OperatorAccountID:  operator.AccountID,
		OperatorPrivateKey: operator.PrivateKey,
		Network:            operator.Network,
		MirrorAddress:      operator.MirrorAddress,
		ConfigFile:         operator.ConfigFile,
		Logger:             &logger,
	})
}

// NewClient creates a new Client.
func NewClient(config ClientConfig) (*Client, error) {
	config, err := applyConfigFile(config)
	if err != nil {
		return nil, err
	}

	networkName, err := shared.NormalizeNetwork(config.Network)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	client := &Client{networkName: networkName, logger: logger}
	if err := client.setOperator(config.OperatorAccountID, config.OperatorPrivateKey); err != nil {
		return nil, err
	}

	nodes := config.Nodes
	if len(nodes) == 0 {
		nodes, err = shared.DefaultNodes(networkName)
		if err != nil {
			return nil, err
		}
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = network.GRPCDialer()
	}
	client.network, err = network.NewClient(network.Config{
		Nodes:           nodes,
		Dialer:          dialer,
		MaxNodeAttempts: config.MaxNodeAttempts,
		Logger:          &logger,
	})
	if err != nil {
		return nil, err
	}

	pollerConfig := config.Poller
	if pollerConfig.Logger == nil {
		pollerConfig.Logger = &logger
	}
	client.poller, err = receipt.NewPoller(client.network, pollerConfig)
	if err != nil {
		client.network.Close()
		return nil, err
	}

	client.mirror, err = mirror.NewClient(mirror.Config{
		Network:    networkName,
		BaseURL:    config.MirrorBaseURL,
		APIKey:     config.MirrorAPIKey,
		HTTPClient: config.HTTPClient,
		Logger:     &logger,
	})
	if err != nil {
		client.network.Close()
		return nil, err
	}

	opener := config.StreamOpener
	if opener == nil {
		address := strings.TrimSpace(config.MirrorAddress)
		if address == "" {
			address, err = shared.DefaultMirrorAddress(networkName)
			if err != nil {
				client.network.Close()
				return nil, err
			}
		}
		client.mirrorConn, err = mirror.DialMirror(address)
		if err != nil {
			client.network.Close()
			return nil, err
		}
		opener = mirror.NewGRPCStreamOpener(client.mirrorConn)
	}
	client.subscriber, err = mirror.NewSubscriber(mirror.SubscriberConfig{Opener: opener, Logger: &logger})
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info().
		Str("network", networkName).
		Int("nodes", len(nodes)).
		Bool("operator", client.hasOperator).
		Msg("ledger client ready")
	return client, nil
}

func applyConfigFile(config ClientConfig) (ClientConfig, error) {
	if strings.TrimSpace(config.ConfigFile) == "" {
		return config, nil
	}
	file, err := shared.LoadNetworkConfig(config.ConfigFile)
	if err != nil {
		return config, err
	}

	if len(config.Nodes) == 0 {
		config.Nodes = file.Nodes
	}
	if config.MirrorAddress == "" && len(file.MirrorNetwork) > 0 {
		config.MirrorAddress = file.MirrorNetwork[0]
	}
	if config.MirrorBaseURL == "" {
		config.MirrorBaseURL = file.MirrorBaseURL
	}
	if config.Network == "" {
		config.Network = file.NetworkName
	}
	if config.OperatorAccountID == "" && config.OperatorPrivateKey == "" {
		config.OperatorAccountID = file.OperatorID
		config.OperatorPrivateKey = file.OperatorKey
	}
	return config, nil
}

func (c *Client) setOperator(accountID string, privateKey string) error {
	accountID = strings.TrimSpace(accountID)
	privateKey = strings.TrimSpace(privateKey)
	if accountID == "" && privateKey == "" {
		return nil
	}
	if accountID == "" {
		return fmt.Errorf("operator account ID is required")
	}
	if privateKey == "" {
		return fmt.Errorf("operator private key is required")
	}

	operatorID, operatorKey, err := shared.OperatorConfig{AccountID: accountID, PrivateKey: privateKey}.Credentials()
	if err != nil {
		return err
	}
	c.operatorID = operatorID
	c.operatorKey = operatorKey
	c.hasOperator = true
	return nil
}

func (c *Client) NetworkName() string {
	return c.networkName
}

// OperatorAccountID returns the operator account, or the zero ID when the
// client is read-only.
func (c *Client) OperatorAccountID() hedera.AccountID {
	return c.operatorID
}

func (c *Client) OperatorPublicKey() (hedera.PublicKey, bool) {
	if !c.hasOperator {
		return hedera.PublicKey{}, false
	}
	return c.operatorKey.PublicKey(), true
}

func (c *Client) Network() *network.Client {
	return c.network
}

func (c *Client) Poller() *receipt.Poller {
	return c.poller
}

// MirrorClient returns the configured mirror node REST client.
func (c *Client) MirrorClient() *mirror.Client {
	return c.mirror
}

func (c *Client) Subscriber() *mirror.Subscriber {
	return c.subscriber
}

// NewTransaction starts a transaction paid by the operator.
func (c *Client) NewTransaction(operation transaction.Operation) (*transaction.Transaction, error) {
	if !c.hasOperator {
		return nil, ErrNoOperator
	}
	tx := transaction.New(operation)
	if err := tx.SetPayer(c.operatorID); err != nil {
		return nil, err
	}
	return tx, nil
}

// Submit freezes tx against this client's nodes if needed, signs it with the
// operator and extraSigners, and submits it. A duplicate is returned with
// transaction.ErrDuplicateTransaction and still counts as submitted.
func (c *Client) Submit(
	ctx context.Context,
	tx *transaction.Transaction,
	extraSigners ...keys.Signer,
) (*transaction.Response, error) {
	if tx.State() == transaction.StateBuilding {
		if err := tx.Freeze(c.network); err != nil {
			return nil, fmt.Errorf("failed to freeze transaction: %w", err)
		}
	}

	signers := extraSigners
	if c.hasOperator {
		signers = append([]keys.Signer{c.operatorKey}, extraSigners...)
	}
	for _, signer := range signers {
		if err := tx.Sign(signer); err != nil {
			return nil, fmt.Errorf("failed to sign transaction: %w", err)
		}
	}

	response, err := tx.Submit(ctx, c.network)
	if err != nil && !errors.Is(err, transaction.ErrDuplicateTransaction) {
		return nil, err
	}
	c.logger.Info().
		Str("transaction_id", response.TransactionID.String()).
		Str("node", response.NodeID.String()).
		Str("operation", tx.Operation().Kind.Name).
		Msg("transaction submitted")
	return response, err
}

// Execute submits tx and waits for its receipt. A terminal receipt that is
// not SUCCESS is returned together with a *transaction.ReceiptStatusError.
func (c *Client) Execute(
	ctx context.Context,
	tx *transaction.Transaction,
	extraSigners ...keys.Signer,
) (transaction.Receipt, error) {
	if _, err := c.Submit(ctx, tx, extraSigners...); err != nil && !errors.Is(err, transaction.ErrDuplicateTransaction) {
		return transaction.Receipt{}, err
	}

	result, err := c.poller.PollTransaction(ctx, tx)
	if err != nil {
		return transaction.Receipt{}, err
	}
	if err := result.Validate(tx.TransactionID()); err != nil {
		return result, err
	}
	return result, nil
}

// GetReceipt polls the receipt of any transaction ID.
func (c *Client) GetReceipt(ctx context.Context, id transaction.TransactionID) (transaction.Receipt, error) {
	return c.poller.PollReceipt(ctx, id)
}

// CreateTopic creates a topic and returns its ID.
func (c *Client) CreateTopic(ctx context.Context, options transaction.TopicCreateOptions) (hedera.TopicID, error) {
	operation, err := transaction.TopicCreate(options)
	if err != nil {
		return hedera.TopicID{}, err
	}
	tx, err := c.NewTransaction(operation)
	if err != nil {
		return hedera.TopicID{}, err
	}
	result, err := c.Execute(ctx, tx)
	if err != nil {
		return hedera.TopicID{}, fmt.Errorf("failed to create topic: %w", err)
	}
	return result.GetTopicID()
}

// SubmitTopicMessage publishes message to topicID and waits for consensus.
func (c *Client) SubmitTopicMessage(
	ctx context.Context,
	topicID hedera.TopicID,
	message []byte,
	extraSigners ...keys.Signer,
) (transaction.Receipt, error) {
	tx, err := c.NewTransaction(transaction.TopicMessageSubmit(topicID, message))
	if err != nil {
		return transaction.Receipt{}, err
	}
	return c.Execute(ctx, tx, extraSigners...)
}

// SubscribeTopic opens a verified subscription to topicID.
func (c *Client) SubscribeTopic(
	ctx context.Context,
	topicID hedera.TopicID,
	options mirror.SubscribeOptions,
	onMessage mirror.MessageHandler,
	onError mirror.ErrorHandler,
) (*mirror.SubscriptionHandle, error) {
	return c.subscriber.Subscribe(ctx, topicID, options, onMessage, onError)
}

// MirrorTransaction looks a transaction up on the mirror node; nil means it
// has not been ingested yet.
func (c *Client) MirrorTransaction(ctx context.Context, id transaction.TransactionID) (*mirror.Transaction, error) {
	return c.mirror.GetTransaction(ctx, id)
}

func (c *Client) TopicInfo(ctx context.Context, topicID hedera.TopicID) (mirror.TopicInfo, error) {
	return c.mirror.GetTopicInfo(ctx, topicID)
}

// Close releases node channels and the mirror connection.
func (c *Client) Close() error {
	var errs []error
	if c.network != nil {
		errs = append(errs, c.network.Close())
	}
	if c.mirrorConn != nil {
		errs = append(errs, c.mirrorConn.Close())
	}
	return errors.Join(errs...)
}
