// Package config aggregates the seed file, the contract deployment file,
// and environment overrides into one AppConfig.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// SeedConfig models the subset of seed.json the service needs.
type SeedConfig struct {
	Chain struct {
		ChainID     int64  `json:"chainId"`
		Name        string `json:"name"`
		RPCURL      string `json:"rpcUrl"`
		ExplorerURL string `json:"explorerUrl"`
	} `json:"chain"`
	Token struct {
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals int    `json:"decimals"`
	} `json:"token"`
	Verification struct {
		BaseURL string `json:"baseUrl"`
	} `json:"verification"`
	Secrets struct {
		HMACSalt string `json:"hmacSalt"`
	} `json:"secrets"`
	Timeouts struct {
		IdempotencyWindowSecs int `json:"idempotencyWindowSeconds"`
	} `json:"timeouts"`
}

// DeploymentConfig represents deployments.json.
type DeploymentConfig struct {
	ChainID   int64  `json:"chainId"`
	Deployer  string `json:"deployer"`
	Contracts struct {
		DonationHub   string `json:"DonationHub"`
		USDStablecoin string `json:"USDStablecoin"`
	} `json:"contracts"`
}

// ServiceEnv holds the environment-driven knobs.
type ServiceEnv struct {
	HTTPPort        int           `env:"API_HTTP_PORT" envDefault:"3000"`
	SeedPath        string        `env:"SEED_PATH" envDefault:"seed.json"`
	DeploymentsPath string        `env:"DEPLOYMENTS_PATH" envDefault:"deployments.json"`
	RPCURL          string        `env:"CHAIN_RPC_URL"`
	PrivateKey      string        `env:"CHAIN_PRIVATE_KEY"`
	VerificationURL string        `env:"VERIFICATION_BASE_URL"`
	PostgresDSN     string        `env:"POSTGRES_DSN"`
	StorePath       string        `env:"SUBMISSION_STORE_PATH"`
	HMACClockSkew   time.Duration `env:"HMAC_CLOCK_SKEW" envDefault:"60s"`
}

// AppConfig ties together seed + deployment info and derived values.
type AppConfig struct {
	Seed              SeedConfig
	Deployment        DeploymentConfig
	Service           ServiceEnv
	IdempotencyWindow time.Duration
}

const defaultVerificationURL = "http://localhost:5001"

// Load reads the environment, then the seed and deployment files, with env
// values taking precedence over file values where both exist.
func Load() (*AppConfig, error) {
	var svc ServiceEnv
	if err := env.Parse(&svc); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	seedCfg, err := loadJSON[SeedConfig](svc.SeedPath)
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}
	deployCfg, err := loadJSON[DeploymentConfig](svc.DeploymentsPath)
	if err != nil {
		return nil, fmt.Errorf("load deployments: %w", err)
	}

	if svc.RPCURL == "" {
		svc.RPCURL = seedCfg.Chain.RPCURL
	}
	if svc.VerificationURL == "" {
		svc.VerificationURL = seedCfg.Verification.BaseURL
	}
	if svc.VerificationURL == "" {
		svc.VerificationURL = defaultVerificationURL
	}
	if svc.StorePath == "" {
		svc.StorePath = filepath.Join(os.TempDir(), "chainraise-submissions.json")
	}

	window := time.Duration(seedCfg.Timeouts.IdempotencyWindowSecs) * time.Second
	if window <= 0 {
		window = time.Minute
	}

	return &AppConfig{
		Seed:              *seedCfg,
		Deployment:        *deployCfg,
		Service:           svc,
		IdempotencyWindow: window,
	}, nil
}

func loadJSON[T any](path string) (*T, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg T
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
