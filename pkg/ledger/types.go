package ledger

import (
	"errors"
	"net/http"

	"github.com/hashgraph-online/ledger-client-go/pkg/mirror"
	"github.com/hashgraph-online/ledger-client-go/pkg/network"
	"github.com/hashgraph-online/ledger-client-go/pkg/receipt"
	"github.com/rs/zerolog"
)

var ErrNoOperator = errors.New("client has no operator configured")

// ClientConfig configures a Client. Empty fields fall back to ConfigFile and
// then to the defaults of Network.
type ClientConfig struct {
	OperatorAccountID  string
	OperatorPrivateKey string
	Network            string
	Nodes              []network.Node
	MirrorAddress      string
	MirrorBaseURL      string
	MirrorAPIKey       string
	ConfigFile         string
	Poller             receipt.Config
	MaxNodeAttempts    int
	Logger             *zerolog.Logger

	// Dialer, StreamOpener and HTTPClient replace the real transports.
	Dialer       network.Dialer
	StreamOpener mirror.StreamOpener
	HTTPClient   *http.Client
}
