// Package donate sequences the two-transaction donation flow: approve the
// token transfer, wait for it to mine, then donate and wait again.
package donate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync/atomic"

	"chainraise/internal/chain"

	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrInFlight rejects a second donation while one is still pending.
	ErrInFlight = errors.New("a donation is already in flight")
	// ErrApprovalReverted reports a mined-but-failed approval; the donate
	// transaction is never submitted past this point.
	ErrApprovalReverted = errors.New("token approval reverted")
	// ErrDonationReverted reports a mined-but-failed donate transaction.
	ErrDonationReverted = errors.New("donate transaction reverted")
)

// ChainWriter is the write-capable contract surface the flow drives.
// *chain.Gateway satisfies it.
type ChainWriter interface {
	Approve(ctx context.Context, amount *big.Int) (*types.Transaction, error)
	Donate(ctx context.Context, campaignID, amount *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Result reports both transaction hashes once the flow settles.
type Result struct {
	ApproveTxHash string `json:"approveTxHash"`
	DonateTxHash  string `json:"donateTxHash"`
	Amount        string `json:"amount"`
	CampaignID    int64  `json:"campaignId"`
}

// Flow runs donations strictly one at a time. Invalidate, when set, is
// called after a successful donation so campaign state is re-fetched
// wholesale rather than patched.
type Flow struct {
	writer     ChainWriter
	inFlight   atomic.Bool
	Invalidate func()
}

func NewFlow(w ChainWriter) *Flow {
	return &Flow{writer: w}
}

// Donate converts the decimal amount to base units, approves the transfer,
// and once the approval is mined submits the donate call with the
// human-readable whole-token amount (the contract rescales it). Failure at
// either stage aborts right there; there is no retry and no compensating
// action.
func (f *Flow) Donate(ctx context.Context, campaignID int64, amount string) (Result, error) {
	if !f.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrInFlight
	}
	defer f.inFlight.Store(false)

	if campaignID <= 0 {
		return Result{}, fmt.Errorf("invalid campaign id: %d", campaignID)
	}
	scaled, whole, err := parseAmount(amount)
	if err != nil {
		return Result{}, err
	}

	approveTx, err := f.writer.Approve(ctx, scaled)
	if err != nil {
		return Result{}, fmt.Errorf("approve: %w", err)
	}
	approveReceipt, err := f.writer.WaitMined(ctx, approveTx)
	if err != nil {
		return Result{}, fmt.Errorf("approve confirmation: %w", err)
	}
	if approveReceipt.Status != types.ReceiptStatusSuccessful {
		return Result{}, fmt.Errorf("%w: tx %s", ErrApprovalReverted, approveTx.Hash().Hex())
	}

	donateTx, err := f.writer.Donate(ctx, big.NewInt(campaignID), whole)
	if err != nil {
		return Result{}, fmt.Errorf("donate: %w", err)
	}
	donateReceipt, err := f.writer.WaitMined(ctx, donateTx)
	if err != nil {
		return Result{}, fmt.Errorf("donate confirmation: %w", err)
	}
	if donateReceipt.Status != types.ReceiptStatusSuccessful {
		return Result{}, fmt.Errorf("%w: tx %s", ErrDonationReverted, donateTx.Hash().Hex())
	}

	if f.Invalidate != nil {
		f.Invalidate()
	}
	log.Printf("donation settled: campaign %d amount %s approve=%s donate=%s",
		campaignID, amount, approveTx.Hash().Hex(), donateTx.Hash().Hex())

	return Result{
		ApproveTxHash: approveTx.Hash().Hex(),
		DonateTxHash:  donateTx.Hash().Hex(),
		Amount:        amount,
		CampaignID:    campaignID,
	}, nil
}

// parseAmount yields the base-unit value for the approval and the
// whole-token value for the donate call. The donate leg encodes the amount
// as a plain integer, so fractional donations are rejected up front rather
// than truncated.
func parseAmount(amount string) (scaled, whole *big.Int, err error) {
	scaled, err = chain.ParseUnits(amount, chain.TokenDecimals)
	if err != nil {
		return nil, nil, err
	}
	if scaled.Sign() <= 0 {
		return nil, nil, fmt.Errorf("donation amount must be positive: %q", amount)
	}
	trimmed := strings.TrimSpace(amount)
	whole, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, nil, fmt.Errorf("donation amount must be a whole token count: %q", amount)
	}
	return scaled, whole, nil
}
