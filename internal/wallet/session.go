package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"chainraise/internal/chain"

	"github.com/ethereum/go-ethereum/common"
)

// Session holds the connected account and its displayed balance. All
// wallet-dependent operations take the session explicitly; there is no
// ambient global state.
type Session struct {
	provider Provider
	target   ChainParams

	mu         sync.Mutex
	address    common.Address
	connected  bool
	connecting bool
	balance    string

	events chan Event
	cancel func()
	done   chan struct{}

	// Invalidate is called on a chain-change event: the simplest correct
	// response is a full reload of derived state, not reconciliation.
	Invalidate func()
}

// NewSession wires a session to a provider targeting the given chain. A nil
// provider yields a session whose Connect fails with ErrProviderMissing.
func NewSession(p Provider, target ChainParams) *Session {
	return &Session{
		provider: p,
		target:   target,
		balance:  "0",
	}
}

// Connect ensures the wallet is on the target network, requests account
// access, reads the stablecoin balance of the first account, and starts
// listening for provider events. Network-switch failures are logged but do
// not abort the connection.
func (s *Session) Connect(ctx context.Context) error {
	if s.provider == nil {
		return ErrProviderMissing
	}

	s.mu.Lock()
	if s.connecting {
		s.mu.Unlock()
		return fmt.Errorf("connect already in progress")
	}
	s.connecting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	s.ensureNetwork(ctx)

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return ErrNoAccounts
	}

	if err := s.refreshBalance(ctx, accounts[0]); err != nil {
		return err
	}

	s.mu.Lock()
	s.address = accounts[0]
	s.connected = true
	s.mu.Unlock()

	return s.listen()
}

// ensureNetwork switches to the target chain. If the wallet does not know
// the chain it is registered once with the fixed RPC and explorer
// parameters, then the switch is retried once. Failures are non-fatal.
func (s *Session) ensureNetwork(ctx context.Context) {
	err := s.provider.SwitchChain(ctx, s.target.ChainID)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrUnknownChain) {
		log.Printf("wallet: switch to chain %s failed: %v", s.target.ChainID, err)
		return
	}
	if addErr := s.provider.AddChain(ctx, s.target); addErr != nil {
		log.Printf("wallet: add chain %s failed: %v", s.target.ChainID, addErr)
		return
	}
	if retryErr := s.provider.SwitchChain(ctx, s.target.ChainID); retryErr != nil {
		log.Printf("wallet: switch retry to chain %s failed: %v", s.target.ChainID, retryErr)
	}
}

func (s *Session) refreshBalance(ctx context.Context, account common.Address) error {
	raw, err := s.provider.TokenBalance(ctx, account)
	if err != nil {
		return fmt.Errorf("read token balance: %w", err)
	}
	s.mu.Lock()
	s.balance = chain.FormatFixed(raw, chain.TokenDecimals, 2)
	s.mu.Unlock()
	return nil
}

// listen starts the event dispatch goroutine once per session.
func (s *Session) listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	events := make(chan Event, 4)
	cancel, err := s.provider.Subscribe(events)
	if err != nil {
		return fmt.Errorf("subscribe wallet events: %w", err)
	}
	s.events = events
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.dispatch()
	return nil
}

// dispatch handles provider events from a single goroutine. Account changes
// re-run the balance refresh for the new account or clear the session when
// access is revoked; a chain change invalidates everything.
func (s *Session) dispatch() {
	defer close(s.done)
	for ev := range s.events {
		switch ev.Kind {
		case AccountsChanged:
			if len(ev.Accounts) == 0 {
				s.clear()
				continue
			}
			account := ev.Accounts[0]
			if err := s.refreshBalance(context.Background(), account); err != nil {
				log.Printf("wallet: balance refresh after account change: %v", err)
				continue
			}
			s.mu.Lock()
			s.address = account
			s.connected = true
			s.mu.Unlock()
		case ChainChanged:
			if s.Invalidate != nil {
				s.Invalidate()
			}
		}
	}
}

func (s *Session) clear() {
	s.mu.Lock()
	s.address = common.Address{}
	s.connected = false
	s.balance = "0"
	s.mu.Unlock()
}

// Address reports the connected account, if any.
func (s *Session) Address() (common.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address, s.connected
}

// Balance is the formatted 2-decimal stablecoin balance display string.
func (s *Session) Balance() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// Disconnect clears local session state only; it cannot revoke the
// wallet-side authorization.
func (s *Session) Disconnect() {
	s.clear()
}

// Close cancels the event subscription and waits for the dispatcher to
// drain.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
