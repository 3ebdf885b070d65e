package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress  string
	DatabaseURI string
	JWTSecret   string
	LogLevel    slog.Level
	CORSOrigins []string

	PaymentGatewayURL      string
	PaymentSecretKey       string
	PaymentPublicKey       string
	PaymentCurrency        string
	PaymentReferencePrefix string
	PaymentTimeout         time.Duration

	ValidationTimeout time.Duration
	ReconcileInterval time.Duration
	WorkerPoolSize    int
	PollBatchSize     int
	ShutdownTimeout   time.Duration

	KafkaBrokers       []string
	KafkaEventsTopic   string
	KafkaDeliveryTopic string
	KafkaGroupID       string
}

const (
	defaultRunAddress        = ":8080"
	defaultJWTSecret         = "change-me-in-production"
	defaultPaymentCurrency   = "GHS"
	defaultReferencePrefix   = "AGRILINK"
	defaultPaymentTimeout    = 30 * time.Minute
	defaultValidationTimeout = 48 * time.Hour
	defaultReconcileInterval = 30 * time.Second
	defaultWorkerPoolSize    = 4
	defaultPollBatchSize     = 32
	defaultShutdownTimeout   = 10 * time.Second
	defaultEventsTopic       = "agrilink.orders"
	defaultDeliveryTopic     = "agrilink.deliveries"
	defaultKafkaGroupID      = "agrilink"
)

// Load parses configuration from flags, environment variables and an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:             getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:            getString(lookup, "DATABASE_URI", ""),
		JWTSecret:              getString(lookup, "JWT_SECRET", defaultJWTSecret),
		PaymentGatewayURL:      getString(lookup, "PAYMENT_GATEWAY_URL", ""),
		PaymentSecretKey:       getString(lookup, "PAYMENT_SECRET_KEY", ""),
		PaymentPublicKey:       getString(lookup, "PAYMENT_PUBLIC_KEY", ""),
		PaymentCurrency:        getString(lookup, "PAYMENT_CURRENCY", defaultPaymentCurrency),
		PaymentReferencePrefix: getString(lookup, "PAYMENT_REFERENCE_PREFIX", defaultReferencePrefix),
		PaymentTimeout:         getDuration(lookup, "PAYMENT_TIMEOUT", defaultPaymentTimeout),
		ValidationTimeout:      getDuration(lookup, "VALIDATION_TIMEOUT", defaultValidationTimeout),
		ReconcileInterval:      getDuration(lookup, "RECONCILE_INTERVAL", defaultReconcileInterval),
		WorkerPoolSize:         getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		PollBatchSize:          getInt(lookup, "POLL_BATCH_SIZE", defaultPollBatchSize),
		ShutdownTimeout:        getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		KafkaEventsTopic:       getString(lookup, "KAFKA_EVENTS_TOPIC", defaultEventsTopic),
		KafkaDeliveryTopic:     getString(lookup, "KAFKA_DELIVERY_TOPIC", defaultDeliveryTopic),
		KafkaGroupID:           getString(lookup, "KAFKA_GROUP_ID", defaultKafkaGroupID),
	}

	fs := flag.NewFlagSet("agrilink", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		brokers              = getString(lookup, "KAFKA_BROKERS", "")
		origins              = getString(lookup, "CORS_ORIGINS", "")
		logLevel             = getString(lookup, "LOG_LEVEL", "info")
		paymentTimeoutStr    = cfg.PaymentTimeout.String()
		validationTimeoutStr = cfg.ValidationTimeout.String()
		reconcileStr         = cfg.ReconcileInterval.String()
		shutdownTimeoutStr   = cfg.ShutdownTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.PaymentGatewayURL, "g", cfg.PaymentGatewayURL, "Payment gateway base URL")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "Secret for signing auth tokens")
	fs.StringVar(&cfg.PaymentCurrency, "currency", cfg.PaymentCurrency, "Charge currency")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent reconciliation workers")
	fs.IntVar(&cfg.PollBatchSize, "poll-batch", cfg.PollBatchSize, "Maximum entries per polling batch")
	fs.StringVar(&paymentTimeoutStr, "payment-timeout", paymentTimeoutStr, "Lifetime of an open charge")
	fs.StringVar(&validationTimeoutStr, "validation-timeout", validationTimeoutStr, "Lifetime of a pending validation")
	fs.StringVar(&reconcileStr, "reconcile-interval", reconcileStr, "Interval between reconciliation passes")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.StringVar(&brokers, "kafka-brokers", brokers, "Comma separated Kafka brokers")
	fs.StringVar(&origins, "cors-origins", origins, "Comma separated allowed CORS origins")
	fs.StringVar(&logLevel, "log-level", logLevel, "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.PaymentTimeout, err = time.ParseDuration(paymentTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid payment timeout: %w", err)
	}
	if cfg.ValidationTimeout, err = time.ParseDuration(validationTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid validation timeout: %w", err)
	}
	if cfg.ReconcileInterval, err = time.ParseDuration(reconcileStr); err != nil {
		return nil, fmt.Errorf("invalid reconcile interval: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cfg.KafkaBrokers = splitList(brokers)
	cfg.CORSOrigins = splitList(origins)

	if secretFile, ok := lookup("JWT_SECRET_FILE"); ok && secretFile != "" {
		content, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, fmt.Errorf("read jwt secret file: %w", err)
		}
		cfg.JWTSecret = strings.TrimSpace(string(content))
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}
	if cfg.PollBatchSize <= 0 {
		cfg.PollBatchSize = defaultPollBatchSize
	}
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = defaultPaymentTimeout
	}
	if cfg.ValidationTimeout <= 0 {
		cfg.ValidationTimeout = defaultValidationTimeout
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = defaultReconcileInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	cfg.PaymentCurrency = strings.ToUpper(cfg.PaymentCurrency)

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}
	if cfg.PaymentGatewayURL != "" && cfg.PaymentSecretKey == "" {
		return nil, fmt.Errorf("payment secret key must be provided with a gateway url")
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
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
