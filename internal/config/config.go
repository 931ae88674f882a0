// Package config loads engine configuration from YAML with environment
// overrides. Decision thresholds, composite weights and gamification
// constants are configuration, not code, so they can be tuned without
// redeploying model weights.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"

	apperrors "github.com/zscore-fintech/zscore-engine/internal/errors"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port      string `yaml:"port"`
	DataDir   string `yaml:"data_dir"`
	RedisAddr string `yaml:"redis_addr"`
}

// TrustConfig holds composite trust scoring weights. The three channel
// weights must sum to 1; equal thirds is the documented default so no single
// data channel dominates an applicant with sparse data elsewhere.
type TrustConfig struct {
	BehavioralWeight float64 `yaml:"behavioral_weight"`
	SocialWeight     float64 `yaml:"social_weight"`
	DigitalWeight    float64 `yaml:"digital_weight"`
	ScoreFloor       float64 `yaml:"score_floor"`
}

// ObscurityConfig holds data-sufficiency thresholds per channel.
type ObscurityConfig struct {
	IdealPaymentMonths  int     `yaml:"ideal_payment_months"`
	IdealLoanCount      int     `yaml:"ideal_loan_count"`
	IdealEndorsements   int     `yaml:"ideal_endorsements"`
	IdealDigitalSignals int     `yaml:"ideal_digital_signals"`
	PaymentWeight       float64 `yaml:"payment_weight"`
	LoanWeight          float64 `yaml:"loan_weight"`
	SocialWeight        float64 `yaml:"social_weight"`
	DigitalWeight       float64 `yaml:"digital_weight"`
	GraduationThreshold float64 `yaml:"graduation_threshold"`
}

// RiskConfig holds the categorizer decision table thresholds.
type RiskConfig struct {
	LowMaxProbability    float64 `yaml:"low_max_probability"`
	LowMinTrust          float64 `yaml:"low_min_trust"`
	MediumMaxProbability float64 `yaml:"medium_max_probability"`
	MediumMinTrust       float64 `yaml:"medium_min_trust"`
	HighMaxProbability   float64 `yaml:"high_max_probability"`
	FallbackFloorPD      float64 `yaml:"fallback_floor_pd"`
	FallbackCeilPD       float64 `yaml:"fallback_ceil_pd"`
	ConfidenceMultiplier float64 `yaml:"confidence_multiplier"`
}

// GamificationConfig holds the trust-bar update and mission constants.
type GamificationConfig struct {
	DampingK            float64 `yaml:"damping_k"`
	GraduationBar       float64 `yaml:"graduation_bar"`
	OnTimePaymentReward int64   `yaml:"on_time_payment_reward"`
	LiteracyReward      int64   `yaml:"literacy_reward"`
	ConsentReward       int64   `yaml:"consent_reward"`
	EndorsementReward   int64   `yaml:"endorsement_reward"`
}

// ModelConfig holds offline training hyperparameters.
type ModelConfig struct {
	SyntheticSamples int     `yaml:"synthetic_samples"`
	Trees            int     `yaml:"trees"`
	MaxDepth         int     `yaml:"max_depth"`
	LearningRate     float64 `yaml:"learning_rate"`
	LogisticIters    int     `yaml:"logistic_iters"`
	LogisticLR       float64 `yaml:"logistic_lr"`
	Seed             int64   `yaml:"seed"`
	BackgroundSize   int     `yaml:"background_size"`
	ShapleySamples   int     `yaml:"shapley_samples"`
}

// Config is the root engine configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Trust        TrustConfig        `yaml:"trust"`
	Obscurity    ObscurityConfig    `yaml:"obscurity"`
	Risk         RiskConfig         `yaml:"risk"`
	Gamification GamificationConfig `yaml:"gamification"`
	Model        ModelConfig        `yaml:"model"`
}

// Default returns the documented baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    "8080",
			DataDir: "./data",
		},
		Trust: TrustConfig{
			BehavioralWeight: 1.0 / 3.0,
			SocialWeight:     1.0 / 3.0,
			DigitalWeight:    1.0 / 3.0,
			ScoreFloor:       0.1,
		},
		Obscurity: ObscurityConfig{
			IdealPaymentMonths:  12,
			IdealLoanCount:      3,
			IdealEndorsements:   3,
			IdealDigitalSignals: 3,
			PaymentWeight:       0.35,
			LoanWeight:          0.20,
			SocialWeight:        0.25,
			DigitalWeight:       0.20,
			GraduationThreshold: 30,
		},
		Risk: RiskConfig{
			LowMaxProbability:    0.05,
			LowMinTrust:          0.80,
			MediumMaxProbability: 0.15,
			MediumMinTrust:       0.60,
			HighMaxProbability:   0.30,
			FallbackFloorPD:      0.05,
			FallbackCeilPD:       0.95,
			ConfidenceMultiplier: 1.96,
		},
		Gamification: GamificationConfig{
			DampingK:            0.25,
			GraduationBar:       70,
			OnTimePaymentReward: 25,
			LiteracyReward:      50,
			ConsentReward:       30,
			EndorsementReward:   40,
		},
		Model: ModelConfig{
			SyntheticSamples: 1000,
			Trees:            100,
			MaxDepth:         3,
			LearningRate:     0.1,
			LogisticIters:    500,
			LogisticLR:       0.5,
			Seed:             42,
			BackgroundSize:   64,
			ShapleySamples:   128,
		},
	}
}

// Load reads config from an optional YAML file, then applies environment
// overrides on top. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, apperrors.NewConfigurationError("failed to read config file", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.NewConfigurationError("failed to parse config file", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewConfigurationError("invalid configuration", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = envOrDefault("PORT", c.Server.Port)
	c.Server.DataDir = envOrDefault("DATA_DIR", c.Server.DataDir)
	c.Server.RedisAddr = envOrDefault("REDIS_ADDR", c.Server.RedisAddr)

	if v, ok := envFloat("GRADUATION_OBSCURITY"); ok {
		c.Obscurity.GraduationThreshold = v
	}
	if v, ok := envFloat("GRADUATION_BAR"); ok {
		c.Gamification.GraduationBar = v
	}
	if v, ok := envFloat("TRUST_BEHAVIORAL_WEIGHT"); ok {
		c.Trust.BehavioralWeight = v
	}
	if v, ok := envFloat("TRUST_SOCIAL_WEIGHT"); ok {
		c.Trust.SocialWeight = v
	}
	if v, ok := envFloat("TRUST_DIGITAL_WEIGHT"); ok {
		c.Trust.DigitalWeight = v
	}
}

// Validate checks invariants that would make scoring nonsensical.
func (c *Config) Validate() error {
	wsum := c.Trust.BehavioralWeight + c.Trust.SocialWeight + c.Trust.DigitalWeight
	if wsum < 0.999 || wsum > 1.001 {
		return fmt.Errorf("trust channel weights must sum to 1, got %.4f", wsum)
	}
	if c.Trust.ScoreFloor < 0 || c.Trust.ScoreFloor >= 1 {
		return fmt.Errorf("trust score floor must be in [0,1), got %.4f", c.Trust.ScoreFloor)
	}
	if c.Obscurity.GraduationThreshold <= 0 || c.Obscurity.GraduationThreshold > 100 {
		return fmt.Errorf("graduation threshold must be in (0,100], got %.1f", c.Obscurity.GraduationThreshold)
	}
	if c.Risk.LowMaxProbability >= c.Risk.MediumMaxProbability ||
		c.Risk.MediumMaxProbability >= c.Risk.HighMaxProbability {
		return fmt.Errorf("risk probability thresholds must be strictly increasing")
	}
	if c.Gamification.DampingK <= 0 {
		return fmt.Errorf("gamification damping constant must be positive")
	}
	return nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
