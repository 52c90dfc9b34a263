// Package server exposes the donation platform over HTTP: campaign reads,
// the donation flow, and recipient onboarding.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chainraise/internal/campaigns"
	"chainraise/internal/config"
	"chainraise/internal/donate"
	"chainraise/internal/hmacauth"
	"chainraise/internal/idempotency"
	"chainraise/internal/verify"
	"chainraise/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// CampaignReader serves the read path. *campaigns.Reader satisfies it.
type CampaignReader interface {
	List(ctx context.Context) ([]campaigns.Campaign, error)
	Get(ctx context.Context, id int64) (campaigns.Campaign, error)
	Recipient(ctx context.Context, addr string) (campaigns.RecipientProfile, error)
	Donors(ctx context.Context, id int64) ([]campaigns.DonorEntry, error)
	DonorSummary(ctx context.Context, addr string) (campaigns.DonorSummary, error)
}

// DonationRunner drives the approve-then-donate flow. *donate.Flow
// satisfies it.
type DonationRunner interface {
	Donate(ctx context.Context, campaignID int64, amount string) (donate.Result, error)
}

// Onboarder resolves recipient status and creates campaigns.
// *verify.Onboarding satisfies it.
type Onboarder interface {
	Status(ctx context.Context, addr common.Address) (verify.Status, error)
	CreateCampaign(ctx context.Context, draft verify.CampaignDraft) (string, error)
}

// VerificationSubmitter forwards identity submissions to the backend.
// *verify.Client satisfies it.
type VerificationSubmitter interface {
	SubmitVerification(ctx context.Context, req verify.VerificationRequest) error
}

// Server wires the handlers, auth, metrics, and health checks together.
type Server struct {
	cfg        *config.AppConfig
	reader     CampaignReader
	flow       DonationRunner
	onboarding Onboarder
	submitter  VerificationSubmitter
	store      idempotency.Store
	session    *wallet.Session
	hmac       *hmacauth.Verifier
	metrics    *metricsRegistry
	httpServer *http.Server

	rpcHealthFn     func(context.Context) error
	backendHealthFn func(context.Context) error
	storeHealthFn   func(context.Context) error
}

type Deps struct {
	Reader     CampaignReader
	Flow       DonationRunner
	Onboarding Onboarder
	Submitter  VerificationSubmitter
	Store      idempotency.Store
	Session    *wallet.Session
	RPCHealth  func(context.Context) error
	Backend    func(context.Context) error
}

func NewServer(cfg *config.AppConfig, deps Deps) *Server {
	s := &Server{
		cfg:        cfg,
		reader:     deps.Reader,
		flow:       deps.Flow,
		onboarding: deps.Onboarding,
		submitter:  deps.Submitter,
		store:      deps.Store,
		session:    deps.Session,
		hmac: &hmacauth.Verifier{
			Secret:  cfg.Seed.Secrets.HMACSalt,
			MaxSkew: cfg.Service.HMACClockSkew,
		},
		metrics:         newMetricsRegistry(),
		rpcHealthFn:     deps.RPCHealth,
		backendHealthFn: deps.Backend,
	}
	if checker, ok := deps.Store.(interface{ Ping(context.Context) error }); ok {
		s.storeHealthFn = checker.Ping
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/campaigns", s.handleCampaigns)
	mux.HandleFunc("/api/v1/campaigns/", s.handleCampaignByID)
	mux.HandleFunc("/api/v1/donors/", s.handleDonor)
	mux.Handle("/api/v1/donations", s.hmac.Middleware(http.HandlerFunc(s.handleDonate)))
	mux.HandleFunc("/api/v1/recipients/", s.handleRecipients)
	mux.Handle("/api/v1/metrics", s.metrics.handler())
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           requestIDMiddleware(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	log.Printf("API listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleCampaigns serves GET (listing) and POST (creation, HMAC-gated).
func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.reader.List(r.Context())
		if err != nil {
			s.metrics.incRead("failed")
			log.Printf("list campaigns: %v", err)
			http.Error(w, "failed to fetch campaigns", http.StatusBadGateway)
			return
		}
		s.metrics.incRead("ok")
		writeJSON(w, http.StatusOK, map[string]interface{}{"campaigns": items})
	case http.MethodPost:
		s.hmac.Middleware(http.HandlerFunc(s.handleCreateCampaign)).ServeHTTP(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCampaignByID serves /campaigns/{id} and /campaigns/{id}/donors.
func (s *Server) handleCampaignByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/campaigns/")
	idPart, sub, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	switch sub {
	case "":
		s.serveCampaign(w, r, id)
	case "donors":
		s.serveCampaignDonors(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) serveCampaign(w http.ResponseWriter, r *http.Request, id int64) {
	campaign, err := s.reader.Get(r.Context(), id)
	if errors.Is(err, campaigns.ErrNotFound) {
		s.metrics.incRead("not_found")
		http.Error(w, "campaign not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.metrics.incRead("failed")
		log.Printf("get campaign %d: %v", id, err)
		http.Error(w, "failed to fetch campaign", http.StatusBadGateway)
		return
	}

	resp := map[string]interface{}{"campaign": campaign}
	if profile, err := s.reader.Recipient(r.Context(), campaign.Recipient); err == nil {
		resp["recipient"] = profile
	} else {
		log.Printf("get campaign %d recipient: %v", id, err)
	}

	s.metrics.incRead("ok")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) serveCampaignDonors(w http.ResponseWriter, r *http.Request, id int64) {
	donors, err := s.reader.Donors(r.Context(), id)
	if errors.Is(err, campaigns.ErrDonorListMismatch) {
		s.metrics.incRead("failed")
		log.Printf("campaign %d donors: %v", id, err)
		http.Error(w, "donor records inconsistent", http.StatusBadGateway)
		return
	}
	if err != nil {
		s.metrics.incRead("failed")
		log.Printf("campaign %d donors: %v", id, err)
		http.Error(w, "failed to fetch donors", http.StatusBadGateway)
		return
	}
	s.metrics.incRead("ok")
	writeJSON(w, http.StatusOK, map[string]interface{}{"donors": donors})
}

func (s *Server) handleDonor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	addr := strings.TrimPrefix(r.URL.Path, "/api/v1/donors/")
	if !common.IsHexAddress(addr) {
		http.Error(w, "invalid donor address", http.StatusBadRequest)
		return
	}

	summary, err := s.reader.DonorSummary(r.Context(), addr)
	if err != nil {
		s.metrics.incRead("failed")
		log.Printf("donor summary %s: %v", addr, err)
		http.Error(w, "failed to fetch donor info", http.StatusBadGateway)
		return
	}
	s.metrics.incRead("ok")
	writeJSON(w, http.StatusOK, summary)
}

type donateRequest struct {
	CampaignID int64  `json:"campaignId"`
	Amount     string `json:"amount"`
}

func (s *Server) handleDonate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
	if key == "" {
		http.Error(w, "missing X-Idempotency-Key header", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if existing, _ := s.store.Get(ctx, key); existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.StatusCode)
		_, _ = w.Write(existing.Response)
		s.metrics.incDonation("cached")
		return
	}

	var payload donateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}
	if payload.CampaignID <= 0 {
		http.Error(w, "campaignId is required", http.StatusBadRequest)
		return
	}
	if payload.Amount == "" {
		http.Error(w, "amount is required", http.StatusBadRequest)
		return
	}

	s.metrics.setInFlight(true)
	result, err := s.flow.Donate(ctx, payload.CampaignID, payload.Amount)
	s.metrics.setInFlight(false)
	if errors.Is(err, donate.ErrInFlight) {
		s.metrics.incDonation("rejected")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		s.metrics.incDonation("failed")
		http.Error(w, "donation failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	body, _ := json.Marshal(result)
	record := idempotency.Record{
		StatusCode: http.StatusCreated,
		Response:   body,
		TxHash:     result.DonateTxHash,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(s.cfg.IdempotencyWindow),
	}
	_ = s.store.Save(ctx, key, record)

	s.metrics.incDonation("settled")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var draft verify.CampaignDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}

	txHash, err := s.onboarding.CreateCampaign(r.Context(), draft)
	if err != nil {
		s.metrics.incCreate("failed")
		http.Error(w, "failed to create campaign: "+err.Error(), http.StatusBadGateway)
		return
	}

	s.metrics.incCreate("created")
	writeJSON(w, http.StatusCreated, map[string]string{
		"status": "created",
		"txHash": txHash,
	})
}

// handleRecipients serves /recipients/verification (POST) and
// /recipients/{address}/status (GET).
func (s *Server) handleRecipients(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/recipients/")

	if rest == "verification" {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleVerificationSubmit(w, r)
		return
	}

	addrPart, sub, _ := strings.Cut(rest, "/")
	if sub != "status" || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if !common.IsHexAddress(addrPart) {
		http.Error(w, "invalid recipient address", http.StatusBadRequest)
		return
	}

	status, err := s.onboarding.Status(r.Context(), common.HexToAddress(addrPart))
	if err != nil {
		log.Printf("recipient status %s: %v", addrPart, err)
		http.Error(w, "failed to resolve recipient status", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": common.HexToAddress(addrPart).Hex(),
		"status":  string(status),
	})
}

const maxProofSize = 10 << 20

func (s *Server) handleVerificationSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxProofSize); err != nil {
		http.Error(w, "invalid multipart payload", http.StatusBadRequest)
		return
	}

	addr := r.FormValue("walletAddress")
	if !common.IsHexAddress(addr) {
		http.Error(w, "invalid wallet address", http.StatusBadRequest)
		return
	}

	proof, header, err := r.FormFile("identityProof")
	if err != nil {
		http.Error(w, "identity proof file is required", http.StatusBadRequest)
		return
	}
	defer proof.Close()

	err = s.submitter.SubmitVerification(r.Context(), verify.VerificationRequest{
		Username:      r.FormValue("username"),
		Country:       r.FormValue("country"),
		WalletAddress: common.HexToAddress(addr),
		ProofName:     header.Filename,
		Proof:         proof,
	})
	if err != nil {
		s.metrics.incVerification("failed")
		if errors.Is(err, verify.ErrSubmitFailed) {
			http.Error(w, "failed to submit verification request", http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.metrics.incVerification("submitted")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending_verification"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	check := func(fn func(context.Context) error) (bool, float64, string) {
		if fn == nil {
			return true, 0, ""
		}
		start := time.Now()
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := fn(checkCtx); err != nil {
			overallHealthy = false
			return false, 0, err.Error()
		}
		return true, float64(time.Since(start).Microseconds()) / 1000.0, ""
	}

	type depInfo struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}

	var rpc, backend, store depInfo
	rpc.Connected, rpc.LatencyMs, rpc.Error = check(s.rpcHealthFn)
	backend.Connected, backend.LatencyMs, backend.Error = check(s.backendHealthFn)
	store.Connected, store.LatencyMs, store.Error = check(s.storeHealthFn)

	walletInfo := map[string]interface{}{"connected": false}
	if s.session != nil {
		if addr, ok := s.session.Address(); ok {
			walletInfo["connected"] = true
			walletInfo["address"] = addr.Hex()
			walletInfo["balance"] = s.session.Balance()
		}
	}

	status := "healthy"
	if !overallHealthy {
		status = "degraded"
	}

	resp := map[string]interface{}{
		"status":  status,
		"rpc":     rpc,
		"backend": backend,
		"store":   store,
		"wallet":  walletInfo,
	}

	code := http.StatusOK
	if !overallHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			r.Header.Set("X-Request-Id", uuid.NewString())
		}
		w.Header().Set("X-Request-Id", r.Header.Get("X-Request-Id"))
		next.ServeHTTP(w, r)
	})
}
