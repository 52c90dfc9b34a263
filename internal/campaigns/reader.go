package campaigns

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"chainraise/internal/chain"

	"github.com/ethereum/go-ethereum/common"
)

// ChainReader is the read-only contract surface the view layer needs.
// *chain.Gateway satisfies it.
type ChainReader interface {
	TotalCampaigns(ctx context.Context) (*big.Int, error)
	CampaignAt(ctx context.Context, id *big.Int) (chain.CampaignRecord, error)
	RecipientAt(ctx context.Context, addr common.Address) (chain.RecipientRecord, error)
	DonorInfo(ctx context.Context, addr common.Address) (chain.DonorRecord, error)
	CampaignDonors(ctx context.Context, id *big.Int) ([]common.Address, error)
	CampaignAmounts(ctx context.Context, id *big.Int) ([]*big.Int, error)
}

// Reader aggregates contract reads into view models.
type Reader struct {
	chain ChainReader
}

func NewReader(c ChainReader) *Reader {
	return &Reader{chain: c}
}

// List reads the campaign count and then each record by 1-based index, in
// index order. Any per-index failure aborts the whole listing; there is no
// per-item partial success.
func (r *Reader) List(ctx context.Context) ([]Campaign, error) {
	total, err := r.chain.TotalCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch campaigns: %w", err)
	}

	count := total.Int64()
	out := make([]Campaign, 0, count)
	for i := int64(1); i <= count; i++ {
		rec, err := r.chain.CampaignAt(ctx, big.NewInt(i))
		if err != nil {
			return nil, fmt.Errorf("fetch campaigns: %w", err)
		}
		out = append(out, toView(i, rec))
	}
	return out, nil
}

// Get fetches one campaign. An empty name field means the slot does not
// exist.
func (r *Reader) Get(ctx context.Context, id int64) (Campaign, error) {
	rec, err := r.chain.CampaignAt(ctx, big.NewInt(id))
	if err != nil {
		return Campaign{}, fmt.Errorf("fetch campaign %d: %w", id, err)
	}
	if rec.Name == "" {
		return Campaign{}, ErrNotFound
	}
	return toView(id, rec), nil
}

// Recipient fetches the recipient profile shown alongside a campaign.
func (r *Reader) Recipient(ctx context.Context, addr string) (RecipientProfile, error) {
	if !common.IsHexAddress(addr) {
		return RecipientProfile{}, fmt.Errorf("invalid recipient address: %q", addr)
	}
	hex := common.HexToAddress(addr)
	rec, err := r.chain.RecipientAt(ctx, hex)
	if err != nil {
		return RecipientProfile{}, fmt.Errorf("fetch recipient: %w", err)
	}
	return RecipientProfile{
		Address:     hex.Hex(),
		Name:        rec.Name,
		Description: rec.Description,
		Website:     rec.Website,
		Verified:    rec.Verified,
	}, nil
}

// Donors zips the donor-address and donor-amount sequences for a campaign.
// The contract keeps the two parallel and equally sized; if they ever
// disagree the zip fails loudly instead of silently misaligning.
func (r *Reader) Donors(ctx context.Context, id int64) ([]DonorEntry, error) {
	campaignID := big.NewInt(id)
	donors, err := r.chain.CampaignDonors(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("fetch donors: %w", err)
	}
	amounts, err := r.chain.CampaignAmounts(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("fetch donor amounts: %w", err)
	}
	if len(donors) != len(amounts) {
		return nil, fmt.Errorf("campaign %d: %w (%d donors, %d amounts)",
			id, ErrDonorListMismatch, len(donors), len(amounts))
	}

	out := make([]DonorEntry, len(donors))
	for i, donor := range donors {
		out[i] = DonorEntry{
			Address:       donor.Hex(),
			Amount:        chain.FormatUnits(amounts[i], chain.TokenDecimals),
			AmountDisplay: FormatUSD(amounts[i]),
		}
	}
	return out, nil
}

// DonorSummary builds the dashboard aggregate: lifetime total, the donation
// list enriched with campaign records and sorted by amount descending
// (stable on ties), and the count of distinct campaigns supported.
func (r *Reader) DonorSummary(ctx context.Context, addr string) (DonorSummary, error) {
	if !common.IsHexAddress(addr) {
		return DonorSummary{}, fmt.Errorf("invalid donor address: %q", addr)
	}
	hex := common.HexToAddress(addr)

	info, err := r.chain.DonorInfo(ctx, hex)
	if err != nil {
		return DonorSummary{}, fmt.Errorf("fetch donor info: %w", err)
	}

	type enriched struct {
		raw  *big.Int
		view DonationView
	}
	rows := make([]enriched, 0, len(info.Donations))
	distinct := make(map[string]struct{})

	for _, pair := range info.Donations {
		rec, err := r.chain.CampaignAt(ctx, pair.CampaignId)
		if err != nil {
			return DonorSummary{}, fmt.Errorf("fetch donated campaign %s: %w", pair.CampaignId, err)
		}
		distinct[pair.CampaignId.String()] = struct{}{}
		rows = append(rows, enriched{
			raw: pair.Amount,
			view: DonationView{
				CampaignID:    pair.CampaignId.Int64(),
				Amount:        chain.FormatUnits(pair.Amount, chain.TokenDecimals),
				AmountDisplay: FormatUSD(pair.Amount),
				Title:         rec.Name,
				Description:   rec.Description,
				ImageURL:      rec.ImageURL,
			},
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].raw.Cmp(rows[j].raw) > 0
	})

	views := make([]DonationView, len(rows))
	for i, row := range rows {
		views[i] = row.view
	}

	return DonorSummary{
		Address:           hex.Hex(),
		TotalDonated:      chain.FormatUnits(info.TotalDonated, chain.TokenDecimals),
		TotalDisplay:      FormatUSD(info.TotalDonated),
		ProjectsSupported: len(distinct),
		Donations:         views,
	}, nil
}

func toView(id int64, rec chain.CampaignRecord) Campaign {
	return Campaign{
		ID:            id,
		Title:         rec.Name,
		Description:   rec.Description,
		ImageURL:      rec.ImageURL,
		DocumentURL:   rec.DocumentURL,
		Raised:        chain.FormatUnits(rec.RaisedNow, chain.TokenDecimals),
		Goal:          chain.FormatUnits(rec.TotalRaise, chain.TokenDecimals),
		RaisedDisplay: FormatUSD(rec.RaisedNow),
		GoalDisplay:   FormatUSD(rec.TotalRaise),
		Progress:      Progress(rec.RaisedNow, rec.TotalRaise),
		Recipient:     rec.Recipient.Hex(),
	}
}
