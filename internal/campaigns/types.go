// Package campaigns turns raw contract records into display-ready view
// models: decimal amounts, dollar formatting, progress percentages, donor
// aggregates.
package campaigns

import "errors"

var (
	// ErrNotFound signals a campaign slot with an empty name.
	ErrNotFound = errors.New("campaign not found")
	// ErrDonorListMismatch signals that the donor-address and donor-amount
	// sequences disagree in length. The contract guarantees they match;
	// fail loudly rather than zip them misaligned.
	ErrDonorListMismatch = errors.New("donor and amount lists differ in length")
)

// Campaign is the listing/detail view of one on-chain campaign. Raised and
// Goal are decimal token strings; the Display fields carry dollar
// formatting.
type Campaign struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	ImageURL      string `json:"imageUrl"`
	DocumentURL   string `json:"documentUrl"`
	Raised        string `json:"raised"`
	Goal          string `json:"goal"`
	RaisedDisplay string `json:"raisedDisplay"`
	GoalDisplay   string `json:"goalDisplay"`
	Progress      string `json:"progress"`
	Recipient     string `json:"recipient"`
}

// RecipientProfile is the recipient card shown next to a campaign.
type RecipientProfile struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Website     string `json:"website"`
	Verified    bool   `json:"verified"`
}

// DonorEntry is one zipped (address, amount) row for a campaign.
type DonorEntry struct {
	Address       string `json:"address"`
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amountDisplay"`
}

// DonationView is one of a donor's donations enriched with its campaign.
type DonationView struct {
	CampaignID    int64  `json:"campaignId"`
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amountDisplay"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	ImageURL      string `json:"imageUrl"`
}

// DonorSummary is the dashboard aggregate for one donor address.
type DonorSummary struct {
	Address           string         `json:"address"`
	TotalDonated      string         `json:"totalDonated"`
	TotalDisplay      string         `json:"totalDisplay"`
	ProjectsSupported int            `json:"projectsSupported"`
	Donations         []DonationView `json:"donations"`
}
