package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainraise/internal/campaigns"
	"chainraise/internal/chain"
	"chainraise/internal/config"
	"chainraise/internal/donate"
	"chainraise/internal/idempotency"
	"chainraise/internal/server"
	"chainraise/internal/verify"
	"chainraise/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()

	gateway, err := chain.NewGateway(ctx, chain.GatewayConfig{
		RPCURL:        cfg.Service.RPCURL,
		DonationHub:   cfg.Deployment.Contracts.DonationHub,
		Stablecoin:    cfg.Deployment.Contracts.USDStablecoin,
		PrivateKeyHex: cfg.Service.PrivateKey,
	})
	if err != nil {
		log.Fatalf("chain gateway error: %v", err)
	}

	var store idempotency.Store
	if cfg.Service.PostgresDSN != "" {
		pg, err := idempotency.NewPostgresStore(ctx, cfg.Service.PostgresDSN)
		if err != nil {
			log.Fatalf("submission store error: %v", err)
		}
		defer pg.Close()
		store = pg
	} else {
		fs, err := idempotency.NewFileStore(cfg.Service.StorePath)
		if err != nil {
			log.Fatalf("submission store error: %v", err)
		}
		store = fs
	}

	backend := verify.NewClient(cfg.Service.VerificationURL)
	reader := campaigns.NewReader(gateway)
	flow := donate.NewFlow(gateway)
	onboarding := verify.NewOnboarding(gateway, gateway, backend)

	session := connectOperatorWallet(ctx, cfg, gateway)
	if session != nil {
		defer session.Close()
	}

	apiServer := server.NewServer(cfg, server.Deps{
		Reader:     reader,
		Flow:       flow,
		Onboarding: onboarding,
		Submitter:  backend,
		Store:      store,
		Session:    session,
		RPCHealth:  gateway.Ping,
		Backend:    backend.Ping,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
}

// connectOperatorWallet establishes the service's own wallet session so
// health reporting can show the transacting account and its stablecoin
// balance. A missing key just means no session.
func connectOperatorWallet(ctx context.Context, cfg *config.AppConfig, gateway *chain.Gateway) *wallet.Session {
	signer, ok := gateway.Signer()
	if !ok {
		log.Printf("no signing key configured; running read-only")
		return nil
	}

	target := wallet.Polygon()
	if cfg.Seed.Chain.ChainID != 0 {
		target.ChainID = big.NewInt(cfg.Seed.Chain.ChainID)
		if cfg.Seed.Chain.Name != "" {
			target.Name = cfg.Seed.Chain.Name
		}
		if cfg.Seed.Chain.RPCURL != "" {
			target.RPCURL = cfg.Seed.Chain.RPCURL
		}
		if cfg.Seed.Chain.ExplorerURL != "" {
			target.ExplorerURL = cfg.Seed.Chain.ExplorerURL
		}
	}

	provider := wallet.NewRPCProvider(gateway, []common.Address{signer}, target)
	session := wallet.NewSession(provider, target)
	if err := session.Connect(ctx); err != nil {
		log.Printf("wallet session: %v", err)
		return nil
	}
	log.Printf("wallet session connected: %s balance %s %s",
		signer.Hex(), session.Balance(), cfg.Seed.Token.Symbol)
	return session
}
