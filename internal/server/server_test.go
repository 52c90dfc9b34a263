package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"chainraise/internal/campaigns"
	"chainraise/internal/config"
	"chainraise/internal/donate"
	"chainraise/internal/hmacauth"
	"chainraise/internal/idempotency"
	"chainraise/internal/verify"

	"github.com/ethereum/go-ethereum/common"
)

const testSecret = "test-salt"

type fakeReader struct {
	campaigns []campaigns.Campaign
	donors    []campaigns.DonorEntry
	summary   campaigns.DonorSummary
	listErr   error
	donorsErr error
}

func (f *fakeReader) List(_ context.Context) ([]campaigns.Campaign, error) {
	return f.campaigns, f.listErr
}

func (f *fakeReader) Get(_ context.Context, id int64) (campaigns.Campaign, error) {
	for _, c := range f.campaigns {
		if c.ID == id {
			return c, nil
		}
	}
	return campaigns.Campaign{}, campaigns.ErrNotFound
}

func (f *fakeReader) Recipient(_ context.Context, addr string) (campaigns.RecipientProfile, error) {
	return campaigns.RecipientProfile{Address: addr, Name: "Hope Clinic", Verified: true}, nil
}

func (f *fakeReader) Donors(_ context.Context, _ int64) ([]campaigns.DonorEntry, error) {
	return f.donors, f.donorsErr
}

func (f *fakeReader) DonorSummary(_ context.Context, addr string) (campaigns.DonorSummary, error) {
	s := f.summary
	s.Address = addr
	return s, nil
}

type fakeFlow struct {
	calls  int
	err    error
	result donate.Result
}

func (f *fakeFlow) Donate(_ context.Context, campaignID int64, amount string) (donate.Result, error) {
	f.calls++
	if f.err != nil {
		return donate.Result{}, f.err
	}
	r := f.result
	r.CampaignID = campaignID
	r.Amount = amount
	return r, nil
}

type fakeOnboarder struct {
	status    verify.Status
	statusErr error
	txHash    string
	createErr error
	draft     verify.CampaignDraft
}

func (f *fakeOnboarder) Status(_ context.Context, _ common.Address) (verify.Status, error) {
	return f.status, f.statusErr
}

func (f *fakeOnboarder) CreateCampaign(_ context.Context, draft verify.CampaignDraft) (string, error) {
	f.draft = draft
	return f.txHash, f.createErr
}

type fakeSubmitter struct {
	req verify.VerificationRequest
	err error
}

func (f *fakeSubmitter) SubmitVerification(_ context.Context, req verify.VerificationRequest) error {
	f.req = req
	return f.err
}

func testConfig() *config.AppConfig {
	cfg := &config.AppConfig{IdempotencyWindow: time.Minute}
	cfg.Seed.Secrets.HMACSalt = testSecret
	cfg.Service.HTTPPort = 0
	cfg.Service.HMACClockSkew = time.Minute
	return cfg
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Store == nil {
		deps.Store = idempotency.NewMemoryStore()
	}
	return NewServer(testConfig(), deps)
}

func signedRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("X-Request-Timestamp", ts)
	req.Header.Set("X-Request-Signature", hmacauth.ComputeSignature(testSecret, ts, body))
	return req
}

func TestListCampaigns(t *testing.T) {
	reader := &fakeReader{campaigns: []campaigns.Campaign{
		{ID: 1, Title: "Clean Water", Raised: "6500", Goal: "10000", Progress: "65.00"},
		{ID: 2, Title: "School Roof", Raised: "0", Goal: "2000", Progress: "0.00"},
	}}
	srv := newTestServer(t, Deps{Reader: reader})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Campaigns []campaigns.Campaign `json:"campaigns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Campaigns) != 2 || resp.Campaigns[0].Title != "Clean Water" {
		t.Fatalf("unexpected campaigns %+v", resp.Campaigns)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestListCampaignsUpstreamFailure(t *testing.T) {
	srv := newTestServer(t, Deps{Reader: &fakeReader{listErr: errors.New("rpc down")}})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
}

func TestGetCampaignWithRecipient(t *testing.T) {
	reader := &fakeReader{campaigns: []campaigns.Campaign{
		{ID: 3, Title: "Clean Water", Recipient: "0x1111111111111111111111111111111111111111"},
	}}
	srv := newTestServer(t, Deps{Reader: reader})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Campaign  campaigns.Campaign         `json:"campaign"`
		Recipient campaigns.RecipientProfile `json:"recipient"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Campaign.ID != 3 {
		t.Fatalf("campaign id %d", resp.Campaign.ID)
	}
	if resp.Recipient.Name != "Hope Clinic" {
		t.Fatalf("recipient %+v", resp.Recipient)
	}
}

func TestGetCampaignNotFound(t *testing.T) {
	srv := newTestServer(t, Deps{Reader: &fakeReader{}})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/99", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestGetCampaignBadID(t *testing.T) {
	srv := newTestServer(t, Deps{Reader: &fakeReader{}})

	for _, path := range []string{"/api/v1/campaigns/abc", "/api/v1/campaigns/0", "/api/v1/campaigns/-1"} {
		rec := httptest.NewRecorder()
		srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", path, rec.Code)
		}
	}
}

func TestCampaignDonors(t *testing.T) {
	reader := &fakeReader{donors: []campaigns.DonorEntry{
		{Address: "0x1111111111111111111111111111111111111111", Amount: "50", AmountDisplay: "$50"},
	}}
	srv := newTestServer(t, Deps{Reader: reader})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/1/donors", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Donors []campaigns.DonorEntry `json:"donors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Donors) != 1 || resp.Donors[0].Amount != "50" {
		t.Fatalf("unexpected donors %+v", resp.Donors)
	}
}

func TestCampaignDonorsMismatch(t *testing.T) {
	reader := &fakeReader{donorsErr: fmt.Errorf("campaign 1: %w: 3 donors, 2 amounts", campaigns.ErrDonorListMismatch)}
	srv := newTestServer(t, Deps{Reader: reader})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/1/donors", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
}

func TestDonorSummary(t *testing.T) {
	reader := &fakeReader{summary: campaigns.DonorSummary{
		TotalDonated:      "160",
		TotalDisplay:      "$160",
		ProjectsSupported: 2,
	}}
	srv := newTestServer(t, Deps{Reader: reader})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/donors/0x1111111111111111111111111111111111111111", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp campaigns.DonorSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ProjectsSupported != 2 || resp.TotalDonated != "160" {
		t.Fatalf("unexpected summary %+v", resp)
	}
}

func TestDonorSummaryBadAddress(t *testing.T) {
	srv := newTestServer(t, Deps{Reader: &fakeReader{}})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/donors/not-an-address", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestDonateSuccess(t *testing.T) {
	flow := &fakeFlow{result: donate.Result{ApproveTxHash: "0xaaa", DonateTxHash: "0xbbb"}}
	srv := newTestServer(t, Deps{Flow: flow})

	body, _ := json.Marshal(donateRequest{CampaignID: 1, Amount: "100"})
	req := signedRequest(http.MethodPost, "/api/v1/donations", body)
	req.Header.Set("X-Idempotency-Key", "don-1")

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var result donate.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.DonateTxHash != "0xbbb" || result.CampaignID != 1 || result.Amount != "100" {
		t.Fatalf("unexpected result %+v", result)
	}
	if flow.calls != 1 {
		t.Fatalf("flow called %d times", flow.calls)
	}
}

func TestDonateIdempotentReplay(t *testing.T) {
	flow := &fakeFlow{result: donate.Result{DonateTxHash: "0xbbb"}}
	srv := newTestServer(t, Deps{Flow: flow})

	body, _ := json.Marshal(donateRequest{CampaignID: 1, Amount: "100"})

	for i := 0; i < 2; i++ {
		req := signedRequest(http.MethodPost, "/api/v1/donations", body)
		req.Header.Set("X-Idempotency-Key", "don-replay")

		rec := httptest.NewRecorder()
		srv.httpServer.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: status %d, body %s", i, rec.Code, rec.Body.String())
		}
	}

	if flow.calls != 1 {
		t.Fatalf("flow called %d times, want 1 (replay must be served from store)", flow.calls)
	}
}

func TestDonateRequiresIdempotencyKey(t *testing.T) {
	flow := &fakeFlow{}
	srv := newTestServer(t, Deps{Flow: flow})

	body, _ := json.Marshal(donateRequest{CampaignID: 1, Amount: "100"})
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, signedRequest(http.MethodPost, "/api/v1/donations", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if flow.calls != 0 {
		t.Fatal("flow must not run without an idempotency key")
	}
}

func TestDonateRejectsUnsignedRequest(t *testing.T) {
	flow := &fakeFlow{}
	srv := newTestServer(t, Deps{Flow: flow})

	body, _ := json.Marshal(donateRequest{CampaignID: 1, Amount: "100"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/donations", bytes.NewReader(body))
	req.Header.Set("X-Idempotency-Key", "don-2")

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	if flow.calls != 0 {
		t.Fatal("flow must not run without a valid signature")
	}
}

func TestDonateConflictWhenInFlight(t *testing.T) {
	srv := newTestServer(t, Deps{Flow: &fakeFlow{err: donate.ErrInFlight}})

	body, _ := json.Marshal(donateRequest{CampaignID: 1, Amount: "100"})
	req := signedRequest(http.MethodPost, "/api/v1/donations", body)
	req.Header.Set("X-Idempotency-Key", "don-3")

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
}

func TestDonateUpstreamFailureNotCached(t *testing.T) {
	flow := &fakeFlow{err: errors.New("approval reverted")}
	srv := newTestServer(t, Deps{Flow: flow})

	body, _ := json.Marshal(donateRequest{CampaignID: 1, Amount: "100"})

	for i := 0; i < 2; i++ {
		req := signedRequest(http.MethodPost, "/api/v1/donations", body)
		req.Header.Set("X-Idempotency-Key", "don-4")

		rec := httptest.NewRecorder()
		srv.httpServer.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("attempt %d: status %d, want 502", i, rec.Code)
		}
	}
	if flow.calls != 2 {
		t.Fatalf("flow called %d times, want 2 (failures must not be cached)", flow.calls)
	}
}

func TestDonateValidation(t *testing.T) {
	srv := newTestServer(t, Deps{Flow: &fakeFlow{}})

	cases := []donateRequest{
		{CampaignID: 0, Amount: "100"},
		{CampaignID: 1, Amount: ""},
	}
	for i, payload := range cases {
		body, _ := json.Marshal(payload)
		req := signedRequest(http.MethodPost, "/api/v1/donations", body)
		req.Header.Set("X-Idempotency-Key", "don-bad-"+strconv.Itoa(i))

		rec := httptest.NewRecorder()
		srv.httpServer.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("case %d: status %d, want 400", i, rec.Code)
		}
	}
}

func TestCreateCampaign(t *testing.T) {
	ob := &fakeOnboarder{txHash: "0xccc"}
	srv := newTestServer(t, Deps{Onboarding: ob})

	body, _ := json.Marshal(verify.CampaignDraft{
		Name:        "Clean Water",
		Description: "Borehole drilling",
		DocumentURL: "https://example.org/plan.pdf",
		ImageURL:    "https://example.org/cover.png",
		Goal:        "5000",
	})
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, signedRequest(http.MethodPost, "/api/v1/campaigns", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if ob.draft.Name != "Clean Water" {
		t.Fatalf("draft %+v", ob.draft)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["txHash"] != "0xccc" {
		t.Fatalf("txHash %q", resp["txHash"])
	}
}

func TestCreateCampaignRejectsUnsigned(t *testing.T) {
	srv := newTestServer(t, Deps{Onboarding: &fakeOnboarder{}})

	body := []byte(`{"name":"x"}`)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/campaigns", bytes.NewReader(body)))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestRecipientStatus(t *testing.T) {
	srv := newTestServer(t, Deps{Onboarding: &fakeOnboarder{status: verify.StatusPending}})

	addr := "0x1111111111111111111111111111111111111111"
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recipients/"+addr+"/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != string(verify.StatusPending) {
		t.Fatalf("status %q", resp["status"])
	}
	if resp["address"] != common.HexToAddress(addr).Hex() {
		t.Fatalf("address %q", resp["address"])
	}
}

func TestRecipientStatusBadAddress(t *testing.T) {
	srv := newTestServer(t, Deps{Onboarding: &fakeOnboarder{}})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recipients/nope/status", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestVerificationSubmit(t *testing.T) {
	submitter := &fakeSubmitter{}
	srv := newTestServer(t, Deps{Submitter: submitter})

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	_ = form.WriteField("username", "Hope Clinic")
	_ = form.WriteField("country", "Kenya")
	_ = form.WriteField("walletAddress", "0x1111111111111111111111111111111111111111")
	part, _ := form.CreateFormFile("identityProof", "id.pdf")
	_, _ = part.Write([]byte("proof-bytes"))
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recipients/verification", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if submitter.req.Username != "Hope Clinic" || submitter.req.Country != "Kenya" {
		t.Fatalf("forwarded request %+v", submitter.req)
	}
	if submitter.req.ProofName != "id.pdf" {
		t.Fatalf("proof name %q", submitter.req.ProofName)
	}
}

func TestVerificationSubmitBackendDown(t *testing.T) {
	srv := newTestServer(t, Deps{Submitter: &fakeSubmitter{err: fmt.Errorf("%w: backend returned 500", verify.ErrSubmitFailed)}})

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	_ = form.WriteField("walletAddress", "0x1111111111111111111111111111111111111111")
	part, _ := form.CreateFormFile("identityProof", "id.pdf")
	_, _ = part.Write([]byte("x"))
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recipients/verification", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
}

func TestHealthDegraded(t *testing.T) {
	srv := newTestServer(t, Deps{
		RPCHealth: func(context.Context) error { return errors.New("dial tcp: connection refused") },
		Backend:   func(context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
		RPC    struct {
			Connected bool   `json:"connected"`
			Error     string `json:"error"`
		} `json:"rpc"`
		Backend struct {
			Connected bool `json:"connected"`
		} `json:"backend"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.RPC.Connected || !resp.Backend.Connected {
		t.Fatalf("unexpected health %+v", resp)
	}
}

func TestHealthHealthy(t *testing.T) {
	srv := newTestServer(t, Deps{
		RPCHealth: func(context.Context) error { return nil },
		Backend:   func(context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Deps{Reader: &fakeReader{}})

	// Generate one read so the counter exists with a value.
	srv.httpServer.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil))

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("chainraise_campaign_reads_total")) {
		t.Fatal("expected campaign read counter in metrics output")
	}
}
