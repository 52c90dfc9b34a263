// Package verify handles recipient onboarding: the off-chain verification
// backend and the on-chain campaign-creation step it unlocks.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrSubmitFailed is the generic failure surfaced for any non-2xx backend
// response; the backend's reason is not trusted for display.
var ErrSubmitFailed = errors.New("verification request submission failed")

// Client talks to the verification backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// VerificationSent reports whether a verification request has been recorded
// for the address (GET /verificationSent/{address}).
func (c *Client) VerificationSent(ctx context.Context, addr common.Address) (bool, error) {
	url := fmt.Sprintf("%s/verificationSent/%s", c.baseURL, addr.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("verification status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("verification status: backend returned %d", resp.StatusCode)
	}

	var payload struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("verification status: %w", err)
	}
	return payload.Verified, nil
}

// VerificationRequest is the multipart identity submission.
type VerificationRequest struct {
	Username      string
	Country       string
	WalletAddress common.Address
	ProofName     string
	Proof         io.Reader
}

func (r VerificationRequest) validate() error {
	if r.Username == "" {
		return errors.New("name is required")
	}
	if r.Country == "" {
		return errors.New("country is required")
	}
	if r.Proof == nil {
		return errors.New("identity proof file is required")
	}
	return nil
}

// SubmitVerification packages the identity submission as multipart form
// data (username, walletAddress, country, identityProof) and posts it to
// the backend. Any non-success response maps to ErrSubmitFailed.
func (c *Client) SubmitVerification(ctx context.Context, req VerificationRequest) error {
	if err := req.validate(); err != nil {
		return err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("username", req.Username); err != nil {
		return err
	}
	if err := form.WriteField("walletAddress", req.WalletAddress.Hex()); err != nil {
		return err
	}
	if err := form.WriteField("country", req.Country); err != nil {
		return err
	}
	part, err := form.CreateFormFile("identityProof", req.ProofName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, req.Proof); err != nil {
		return fmt.Errorf("read identity proof: %w", err)
	}
	if err := form.Close(); err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verificationRequest", &body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: backend returned %d", ErrSubmitFailed, resp.StatusCode)
	}
	return nil
}

// Ping checks backend reachability for health reporting.
func (c *Client) Ping(ctx context.Context) error {
	addr := common.Address{}
	_, err := c.VerificationSent(ctx, addr)
	return err
}
