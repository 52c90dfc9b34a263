package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceReader reads the stablecoin balance for an account. *chain.Gateway
// satisfies it.
type BalanceReader interface {
	TokenBalance(ctx context.Context, account common.Address) (*big.Int, error)
}

// RPCProvider is a headless wallet provider backed by an RPC connection and
// a fixed set of local accounts. There is no interactive prompt, so account
// requests never block; the chain registry plays the role of the wallet's
// known-network list.
type RPCProvider struct {
	balances BalanceReader
	accounts []common.Address

	mu          sync.Mutex
	active      *big.Int
	known       map[string]ChainParams
	subscribers map[int]chan<- Event
	nextSub     int
}

// NewRPCProvider starts on the given chain with that chain pre-registered.
func NewRPCProvider(balances BalanceReader, accounts []common.Address, current ChainParams) *RPCProvider {
	return &RPCProvider{
		balances: balances,
		accounts: accounts,
		active:   new(big.Int).Set(current.ChainID),
		known: map[string]ChainParams{
			current.ChainID.String(): current,
		},
		subscribers: make(map[int]chan<- Event),
	}
}

func (p *RPCProvider) RequestAccounts(_ context.Context) ([]common.Address, error) {
	out := make([]common.Address, len(p.accounts))
	copy(out, p.accounts)
	return out, nil
}

func (p *RPCProvider) ChainID(_ context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.active), nil
}

// SwitchChain moves to a registered chain, or reports ErrUnknownChain so
// the caller can AddChain and retry.
func (p *RPCProvider) SwitchChain(_ context.Context, chainID *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active.Cmp(chainID) == 0 {
		return nil
	}
	if _, ok := p.known[chainID.String()]; !ok {
		return fmt.Errorf("chain %s: %w", chainID, ErrUnknownChain)
	}
	p.active = new(big.Int).Set(chainID)
	p.emitLocked(Event{Kind: ChainChanged, ChainID: new(big.Int).Set(chainID)})
	return nil
}

func (p *RPCProvider) AddChain(_ context.Context, params ChainParams) error {
	if params.ChainID == nil {
		return fmt.Errorf("chain params missing chain id")
	}
	if params.RPCURL == "" {
		return fmt.Errorf("chain params missing rpc url")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.known[params.ChainID.String()] = params
	return nil
}

func (p *RPCProvider) TokenBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return p.balances.TokenBalance(ctx, account)
}

func (p *RPCProvider) Subscribe(events chan<- Event) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = events

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, id)
			p.mu.Unlock()
			close(events)
		})
	}
	return cancel, nil
}

// emitLocked fans an event out without blocking on slow subscribers.
func (p *RPCProvider) emitLocked(ev Event) {
	for _, ch := range p.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
