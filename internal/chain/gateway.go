package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"chainraise/internal/contracts"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// CampaignRecord mirrors the campaigns(uint256) tuple. Raised and goal stay
// in raw base units; formatting happens at the read path.
type CampaignRecord struct {
	Name        string
	Description string
	ImageURL    string
	DocumentURL string
	RaisedNow   *big.Int
	TotalRaise  *big.Int
	Recipient   common.Address
}

// RecipientRecord mirrors the recipients(address) tuple.
type RecipientRecord struct {
	Name        string
	Description string
	Website     string
	Verified    bool
}

// DonationPair is one (campaignId, amount) entry from getDonorInfo.
type DonationPair struct {
	CampaignId *big.Int
	Amount     *big.Int
}

// DonorRecord mirrors the getDonorInfo(address) tuple.
type DonorRecord struct {
	TotalDonated *big.Int
	Donations    []DonationPair
}

// Gateway holds the two fixed bindings: the donation contract and the
// stablecoin token contract. Reads work without a key; any state-changing
// call requires the keyed transactor. Every call is a fresh round trip —
// no caching, no retries.
type Gateway struct {
	client       *ethclient.Client
	donation     *bind.BoundContract
	token        *bind.BoundContract
	donationAddr common.Address
	tokenAddr    common.Address
	chainID      *big.Int
	transacts    *bind.TransactOpts
}

type GatewayConfig struct {
	RPCURL        string
	DonationHub   string
	Stablecoin    string
	PrivateKeyHex string // optional; empty means read-only
}

// NewGateway dials the RPC endpoint and constructs both bindings. A
// malformed address or ABI is a configuration error, not something to
// recover from at call time.
func NewGateway(ctx context.Context, cfg GatewayConfig) (*Gateway, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.DonationHub) {
		return nil, fmt.Errorf("invalid donation hub address: %q", cfg.DonationHub)
	}
	if !common.IsHexAddress(cfg.Stablecoin) {
		return nil, fmt.Errorf("invalid stablecoin address: %q", cfg.Stablecoin)
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	donationABI, err := abi.JSON(strings.NewReader(contracts.DonationHubABI))
	if err != nil {
		return nil, fmt.Errorf("parse donation abi: %w", err)
	}
	tokenABI, err := abi.JSON(strings.NewReader(contracts.StablecoinABI))
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}

	donationAddr := common.HexToAddress(cfg.DonationHub)
	tokenAddr := common.HexToAddress(cfg.Stablecoin)

	g := &Gateway{
		client:       cli,
		donation:     bind.NewBoundContract(donationAddr, donationABI, cli, cli, cli),
		token:        bind.NewBoundContract(tokenAddr, tokenABI, cli, cli, cli),
		donationAddr: donationAddr,
		tokenAddr:    tokenAddr,
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	g.chainID = chainID

	if cfg.PrivateKeyHex != "" {
		pk, err := parsePrivateKey(cfg.PrivateKeyHex)
		if err != nil {
			return nil, err
		}
		txOpts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
		if err != nil {
			return nil, fmt.Errorf("transactor: %w", err)
		}
		txOpts.GasLimit = 0 // let node estimate
		g.transacts = txOpts
	}

	return g, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// ChainID reports the connected network.
func (g *Gateway) ChainID() *big.Int {
	return new(big.Int).Set(g.chainID)
}

// DonationHubAddress is the approval spender for donations.
func (g *Gateway) DonationHubAddress() common.Address {
	return g.donationAddr
}

// Signer reports the transacting account, if a key is configured.
func (g *Gateway) Signer() (common.Address, bool) {
	if g.transacts == nil {
		return common.Address{}, false
	}
	return g.transacts.From, true
}

func (g *Gateway) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}

func (g *Gateway) TotalCampaigns(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := g.donation.Call(g.callOpts(ctx), &out, "getTotalCampaigns"); err != nil {
		return nil, fmt.Errorf("getTotalCampaigns: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (g *Gateway) CampaignAt(ctx context.Context, id *big.Int) (CampaignRecord, error) {
	var out []interface{}
	if err := g.donation.Call(g.callOpts(ctx), &out, "campaigns", id); err != nil {
		return CampaignRecord{}, fmt.Errorf("campaigns(%s): %w", id, err)
	}
	return CampaignRecord{
		Name:        *abi.ConvertType(out[0], new(string)).(*string),
		Description: *abi.ConvertType(out[1], new(string)).(*string),
		ImageURL:    *abi.ConvertType(out[2], new(string)).(*string),
		DocumentURL: *abi.ConvertType(out[3], new(string)).(*string),
		RaisedNow:   *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
		TotalRaise:  *abi.ConvertType(out[5], new(*big.Int)).(**big.Int),
		Recipient:   *abi.ConvertType(out[6], new(common.Address)).(*common.Address),
	}, nil
}

func (g *Gateway) RecipientAt(ctx context.Context, addr common.Address) (RecipientRecord, error) {
	var out []interface{}
	if err := g.donation.Call(g.callOpts(ctx), &out, "recipients", addr); err != nil {
		return RecipientRecord{}, fmt.Errorf("recipients(%s): %w", addr.Hex(), err)
	}
	return RecipientRecord{
		Name:        *abi.ConvertType(out[0], new(string)).(*string),
		Description: *abi.ConvertType(out[1], new(string)).(*string),
		Website:     *abi.ConvertType(out[2], new(string)).(*string),
		Verified:    *abi.ConvertType(out[3], new(bool)).(*bool),
	}, nil
}

func (g *Gateway) DonorInfo(ctx context.Context, addr common.Address) (DonorRecord, error) {
	var out []interface{}
	if err := g.donation.Call(g.callOpts(ctx), &out, "getDonorInfo", addr); err != nil {
		return DonorRecord{}, fmt.Errorf("getDonorInfo(%s): %w", addr.Hex(), err)
	}
	return DonorRecord{
		TotalDonated: *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Donations:    *abi.ConvertType(out[1], new([]DonationPair)).(*[]DonationPair),
	}, nil
}

func (g *Gateway) CampaignDonors(ctx context.Context, id *big.Int) ([]common.Address, error) {
	var out []interface{}
	if err := g.donation.Call(g.callOpts(ctx), &out, "getCampaignDonors", id); err != nil {
		return nil, fmt.Errorf("getCampaignDonors(%s): %w", id, err)
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

func (g *Gateway) CampaignAmounts(ctx context.Context, id *big.Int) ([]*big.Int, error) {
	var out []interface{}
	if err := g.donation.Call(g.callOpts(ctx), &out, "getCampaignAmounts", id); err != nil {
		return nil, fmt.Errorf("getCampaignAmounts(%s): %w", id, err)
	}
	return *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int), nil
}

func (g *Gateway) TokenBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	var out []interface{}
	if err := g.token.Call(g.callOpts(ctx), &out, "balanceOf", account); err != nil {
		return nil, fmt.Errorf("balanceOf(%s): %w", account.Hex(), err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (g *Gateway) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if g.transacts == nil {
		return nil, fmt.Errorf("gateway is read-only")
	}
	opts := *g.transacts
	opts.Context = ctx
	return &opts, nil
}

// Approve authorizes the donation contract to transfer amount base units
// from the signer.
func (g *Gateway) Approve(ctx context.Context, amount *big.Int) (*types.Transaction, error) {
	opts, err := g.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := g.token.Transact(opts, "approve", g.donationAddr, amount)
	if err != nil {
		return nil, fmt.Errorf("approve tx: %w", err)
	}
	return tx, nil
}

// Donate submits the donate transaction. The amount is the human-readable
// whole-token value; the contract rescales it.
func (g *Gateway) Donate(ctx context.Context, campaignID, amount *big.Int) (*types.Transaction, error) {
	opts, err := g.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := g.donation.Transact(opts, "donate", campaignID, amount)
	if err != nil {
		return nil, fmt.Errorf("donate tx: %w", err)
	}
	return tx, nil
}

// CreateCampaign submits a campaign-creation transaction. The goal is in
// base units.
func (g *Gateway) CreateCampaign(ctx context.Context, name, description, documentURL, imageURL string, totalRaise *big.Int) (*types.Transaction, error) {
	opts, err := g.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := g.donation.Transact(opts, "createCampaign", name, description, documentURL, imageURL, totalRaise)
	if err != nil {
		return nil, fmt.Errorf("createCampaign tx: %w", err)
	}
	return tx, nil
}

// WaitMined polls until the transaction is mined or the context is
// cancelled. Block time bounds the latency; no timeout is imposed here.
func (g *Gateway) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := g.client.TransactionReceipt(ctx, tx.Hash())
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && err.Error() != "not found" {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Ping verifies RPC connectivity.
func (g *Gateway) Ping(ctx context.Context) error {
	if g.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := g.client.BlockNumber(ctx)
	return err
}
