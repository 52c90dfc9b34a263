// Package wallet manages the connection to a wallet provider: network
// bootstrap, account access, balance display, and account/chain change
// events.
package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrProviderMissing means no wallet provider is configured. Callers
	// degrade to a disconnected state rather than treating this as fatal.
	ErrProviderMissing = errors.New("no wallet provider available")
	// ErrUserRejected maps a declined wallet prompt.
	ErrUserRejected = errors.New("wallet request rejected by user")
	// ErrNoAccounts means the provider granted access but returned no
	// accounts.
	ErrNoAccounts = errors.New("wallet returned no accounts")
	// ErrUnknownChain is returned by SwitchChain when the wallet does not
	// know the requested chain; the caller may register it with AddChain
	// and retry once.
	ErrUnknownChain = errors.New("chain not registered with wallet")
)

// ChainParams describes a network the wallet can be asked to register.
type ChainParams struct {
	ChainID          *big.Int
	Name             string
	RPCURL           string
	ExplorerURL      string
	CurrencyName     string
	CurrencySymbol   string
	CurrencyDecimals int
}

// Polygon is the target network with its fixed public RPC and explorer.
func Polygon() ChainParams {
	return ChainParams{
		ChainID:          big.NewInt(137),
		Name:             "Polygon Mainnet",
		RPCURL:           "https://polygon-rpc.com/",
		ExplorerURL:      "https://polygonscan.com/",
		CurrencyName:     "MATIC",
		CurrencySymbol:   "MATIC",
		CurrencyDecimals: 18,
	}
}

// EventKind discriminates provider events.
type EventKind int

const (
	// AccountsChanged carries the new account list; empty means the wallet
	// revoked access.
	AccountsChanged EventKind = iota
	// ChainChanged means the active network moved; session state is stale.
	ChainChanged
)

// Event is one provider notification.
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  *big.Int
}

// Provider is the wallet surface the session drives. Subscribe returns a
// cancellation handle; invoking it stops delivery and closes the channel.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SwitchChain(ctx context.Context, chainID *big.Int) error
	AddChain(ctx context.Context, params ChainParams) error
	TokenBalance(ctx context.Context, account common.Address) (*big.Int, error)
	Subscribe(events chan<- Event) (cancel func(), err error)
}
