package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	AppEnv string

	DBDriver         string // postgres, mysql or sqlite
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	MySQLUser        string
	MySQLPassword    string
	MySQLDB          string
	MySQLHost        string
	MySQLPort        string
	SQLitePath       string
	DBMaxOpenConns   int
	DBMaxIdleConns   int

	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	StripeSecretKey    string
	StripeWebhookKey   string
	StripeSecretID     string // Secrets Manager id holding the two Stripe keys as JSON
	FrontendURL        string
	WebhookMaxEventAge time.Duration
	SignupBonusCredits int
	WorkflowServiceURL string
	WorkflowTimeout    time.Duration
	AllowedOrigins     []string

	KafkaBrokers      string
	KafkaLedgerTopic  string
	LedgerSNSTopicARN string

	CloudWatchEnabled   bool
	CloudWatchNamespace string
}

// LoadConfig reads configuration from the environment, loading a .env file first when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	accessTTL, err := getEnvDuration("ACCESS_TOKEN_TTL", 60*time.Minute)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	maxAge, err := getEnvDuration("WEBHOOK_MAX_EVENT_AGE", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	workflowTimeout, err := getEnvDuration("WORKFLOW_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	bonus, err := getEnvInt("SIGNUP_BONUS_CREDITS", 10)
	if err != nil {
		return nil, err
	}
	maxOpen, err := getEnvInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	maxIdle, err := getEnvInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),

		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		MySQLUser:        os.Getenv("MYSQL_USER"),
		MySQLPassword:    os.Getenv("MYSQL_PASSWORD"),
		MySQLDB:          os.Getenv("MYSQL_DB"),
		MySQLHost:        getEnv("MYSQL_HOST", "localhost"),
		MySQLPort:        getEnv("MYSQL_PORT", "3306"),
		SQLitePath:       getEnv("SQLITE_PATH", "comfy.db"),
		DBMaxOpenConns:   maxOpen,
		DBMaxIdleConns:   maxIdle,

		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTIssuer:       getEnv("JWT_ISSUER", "comfy"),
		JWTAudience:     getEnv("JWT_AUDIENCE", "comfy-clients"),
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,

		StripeSecretKey:    os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeSecretID:     os.Getenv("STRIPE_SECRET_ID"),
		FrontendURL:        strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		WebhookMaxEventAge: maxAge,
		SignupBonusCredits: bonus,
		WorkflowServiceURL: getEnv("WORKFLOW_SERVICE_URL", "http://localhost:8188"),
		WorkflowTimeout:    workflowTimeout,
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		KafkaLedgerTopic:  getEnv("KAFKA_LEDGER_TOPIC", "ledger-events"),
		LedgerSNSTopicARN: os.Getenv("LEDGER_SNS_TOPIC_ARN"),

		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Comfy"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing required settings. Stripe keys may be absent when
// StripeSecretID is set; they are resolved later through ApplyStripeSecret.
func (c *Config) Validate() error {
	var missing []string

	switch c.DBDriver {
	case "postgres":
		if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" {
			missing = append(missing, "POSTGRES_USER/POSTGRES_PASSWORD/POSTGRES_DB")
		}
	case "mysql":
		if c.MySQLUser == "" || c.MySQLPassword == "" || c.MySQLDB == "" {
			missing = append(missing, "MYSQL_USER/MYSQL_PASSWORD/MYSQL_DB")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.StripeSecretID == "" && (c.StripeSecretKey == "" || c.StripeWebhookKey == "") {
		missing = append(missing, "STRIPE_API_KEY/STRIPE_WEBHOOK_SECRET")
	}
	if c.SignupBonusCredits < 0 {
		return fmt.Errorf("SIGNUP_BONUS_CREDITS must not be negative")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ApplyStripeSecret fills the Stripe keys from a Secrets Manager JSON document
// of the form {"STRIPE_API_KEY": "...", "STRIPE_WEBHOOK_SECRET": "..."}.
func (c *Config) ApplyStripeSecret(raw string) error {
	var doc struct {
		APIKey        string `json:"STRIPE_API_KEY"`
		WebhookSecret string `json:"STRIPE_WEBHOOK_SECRET"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("invalid stripe secret document: %w", err)
	}
	if doc.APIKey != "" {
		c.StripeSecretKey = doc.APIKey
	}
	if doc.WebhookSecret != "" {
		c.StripeWebhookKey = doc.WebhookSecret
	}
	if c.StripeSecretKey == "" || c.StripeWebhookKey == "" {
		return fmt.Errorf("stripe secret document is missing keys")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(strings.TrimSuffix(part, "/")); p != "" {
			out = append(out, p)
		}
	}
	return out
}
