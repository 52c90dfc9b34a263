package verify

import (
	"context"
	"fmt"
	"math/big"

	"chainraise/internal/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Status is the recipient's onboarding state.
type Status string

const (
	// StatusUnregistered: no verification request on record anywhere.
	StatusUnregistered Status = "unregistered"
	// StatusPending: the backend has the request but the admin has not
	// approved it on-chain yet.
	StatusPending Status = "pending_verification"
	// StatusVerified: the on-chain recipient record exists; campaign
	// creation is open.
	StatusVerified Status = "verified"
)

// RecipientReader reads the on-chain recipient record.
type RecipientReader interface {
	RecipientAt(ctx context.Context, addr common.Address) (chain.RecipientRecord, error)
}

// CampaignCreator submits and confirms campaign-creation transactions.
type CampaignCreator interface {
	CreateCampaign(ctx context.Context, name, description, documentURL, imageURL string, totalRaise *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// StatusClient is the backend query used as the fallback when the address
// has no on-chain record.
type StatusClient interface {
	VerificationSent(ctx context.Context, addr common.Address) (bool, error)
}

// Onboarding resolves recipient status and drives campaign creation.
type Onboarding struct {
	chain   RecipientReader
	creator CampaignCreator
	backend StatusClient
}

func NewOnboarding(reader RecipientReader, creator CampaignCreator, backend StatusClient) *Onboarding {
	return &Onboarding{chain: reader, creator: creator, backend: backend}
}

// Status checks the chain first: a non-empty recipient name means verified,
// and the backend is never consulted. Otherwise a recorded backend request
// maps to pending; anything else is unregistered.
func (o *Onboarding) Status(ctx context.Context, addr common.Address) (Status, error) {
	rec, err := o.chain.RecipientAt(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("read recipient record: %w", err)
	}
	if rec.Name != "" {
		return StatusVerified, nil
	}

	sent, err := o.backend.VerificationSent(ctx, addr)
	if err != nil {
		return "", err
	}
	if sent {
		return StatusPending, nil
	}
	return StatusUnregistered, nil
}

// CampaignDraft is a campaign-creation submission. Goal is a decimal token
// string; it is scaled to base units before hitting the contract.
type CampaignDraft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DocumentURL string `json:"documentUrl"`
	ImageURL    string `json:"imageUrl"`
	Goal        string `json:"goal"`
}

func (d CampaignDraft) validate() (*big.Int, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("campaign name is required")
	}
	if d.Description == "" {
		return nil, fmt.Errorf("campaign description is required")
	}
	if d.DocumentURL == "" {
		return nil, fmt.Errorf("document url is required")
	}
	if d.ImageURL == "" {
		return nil, fmt.Errorf("image url is required")
	}
	goal, err := chain.ParseUnits(d.Goal, chain.TokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("funding goal: %w", err)
	}
	if goal.Sign() <= 0 {
		return nil, fmt.Errorf("funding goal must be positive")
	}
	return goal, nil
}

// CreateCampaign validates the draft, submits the transaction, and blocks
// until it is mined. The new campaign is not tracked locally; the next
// listing read discovers it.
func (o *Onboarding) CreateCampaign(ctx context.Context, draft CampaignDraft) (string, error) {
	goal, err := draft.validate()
	if err != nil {
		return "", err
	}

	tx, err := o.creator.CreateCampaign(ctx, draft.Name, draft.Description, draft.DocumentURL, draft.ImageURL, goal)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	receipt, err := o.creator.WaitMined(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("create campaign confirmation: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("create campaign reverted: tx %s", tx.Hash().Hex())
	}
	return tx.Hash().Hex(), nil
}
