package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"labbooking/internal/payment"

	"github.com/joho/godotenv"
)

// Config is everything the API process reads from its environment.
type Config struct {
	Port          string
	GinMode       string
	DSN           string
	JWTSecret     []byte
	CORSOrigins   []string
	SweepInterval time.Duration
	Midtrans      payment.MidtransConfig
}

// Load reads configs/.env when present, then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Printf("[config] no %s file found or error loading it", envFile)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		DSN:         buildDSN(),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if cfg.GinMode == "release" {
			return nil, errors.New("JWT_SECRET is required in release mode")
		}
		secret = "default_super_secret_key" // development fallback only
	}
	cfg.JWTSecret = []byte(secret)

	var err error
	if cfg.SweepInterval, err = getDuration("SCHEDULE_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	timeout, err := getDuration("MIDTRANS_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	verify, err := getBool("MIDTRANS_VERIFY_SIGNATURE", true)
	if err != nil {
		return nil, err
	}
	mock, err := getBool("PAYMENT_GATEWAY_MOCK", false)
	if err != nil {
		return nil, err
	}
	cfg.Midtrans = payment.MidtransConfig{
		ServerKey:       os.Getenv("MIDTRANS_SERVER_KEY"),
		ClientKey:       os.Getenv("MIDTRANS_CLIENT_KEY"),
		Environment:     getEnv("MIDTRANS_ENV", "sandbox"),
		FinishURL:       getEnv("MIDTRANS_FINISH_URL", "http://localhost:5173/payment/finish"),
		Timeout:         timeout,
		VerifySignature: verify,
		MockMode:        mock,
	}

	return cfg, nil
}

func buildDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", "postgres"),
		getEnv("DB_SSLMODE", "disable"),
	)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// getDuration accepts Go durations ("90s") or plain seconds ("90").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
