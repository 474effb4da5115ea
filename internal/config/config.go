// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"fdvault/internal/domain"
	"fdvault/internal/ledger"
	"fdvault/pkg/db"
)

// Storage backends for audit records and ledger snapshots.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// KafkaConfig configures the audit event publisher. An empty broker list
// disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	LogLevel   string
	Storage    string
	DB         db.Config
	Kafka      KafkaConfig

	Ledger        ledger.Params
	OpeningEth    decimal.Decimal
	OpeningTokens decimal.Decimal
	// InterestInterval schedules DistributeMonthlyInterest; zero disables it.
	InterestInterval time.Duration
}

func setDefaults(v *viper.Viper) {
	params := ledger.DefaultParams()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE", StorageMemory)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "fdvault")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "fdvault.commands")

	v.SetDefault("OPENING_TOKEN_BALANCE", "50000")
	v.SetDefault("OPENING_ETH_BALANCE", "2.5")
	v.SetDefault("INTEREST_DISTRIBUTION_INTERVAL", "0s")

	v.SetDefault("FD_MONTHLY_RATE", params.MonthlyRatePercent.String())
	v.SetDefault("FD_EARLY_RATE_FACTOR", params.EarlyRateFactor.String())
	v.SetDefault("GLOBAL_MONTHLY_RATE", params.GlobalMonthlyRate.String())
	v.SetDefault("ETH_TO_MT_RATE", params.EthToTokenRate.String())
}

// LoadConfig loads configuration from an optional .env file, an optional
// config/fdvault.yaml and the environment, in increasing precedence.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("fdvault")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	storage := strings.ToLower(v.GetString("STORAGE"))
	if storage != StorageMemory && storage != StoragePostgres {
		return nil, fmt.Errorf("invalid STORAGE %q: want %s or %s", storage, StorageMemory, StoragePostgres)
	}

	interval, err := time.ParseDuration(v.GetString("INTEREST_DISTRIBUTION_INTERVAL"))
	if err != nil || interval < 0 {
		return nil, fmt.Errorf("invalid INTEREST_DISTRIBUTION_INTERVAL %q", v.GetString("INTEREST_DISTRIBUTION_INTERVAL"))
	}

	units := map[string]*decimal.Decimal{}
	cfg := &AppConfig{
		ServerPort: v.GetString("SERVER_PORT"),
		LogLevel:   v.GetString("LOG_LEVEL"),
		Storage:    storage,
		DB: db.Config{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		InterestInterval: interval,
	}
	units["OPENING_TOKEN_BALANCE"] = &cfg.OpeningTokens
	units["OPENING_ETH_BALANCE"] = &cfg.OpeningEth
	units["FD_MONTHLY_RATE"] = &cfg.Ledger.MonthlyRatePercent
	units["FD_EARLY_RATE_FACTOR"] = &cfg.Ledger.EarlyRateFactor
	units["GLOBAL_MONTHLY_RATE"] = &cfg.Ledger.GlobalMonthlyRate
	units["ETH_TO_MT_RATE"] = &cfg.Ledger.EthToTokenRate
	for key, dst := range units {
		d, err := domain.ParseUnits(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if cfg.OpeningTokens.IsNegative() || cfg.OpeningEth.IsNegative() {
		return nil, fmt.Errorf("opening balances must not be negative")
	}
	if err := cfg.Ledger.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger parameters: %w", err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
