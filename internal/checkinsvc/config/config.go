package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingConfig = errors.New("missing required configuration")

const (
	BackendSheets   = "sheets"
	BackendXLSX     = "xlsx"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"

	SchemaLegacy = "legacy"
	SchemaTyped  = "typed"
)

var DefaultCategories = []string{"아동안전지킴이", "자율방범대"}

type Config struct {
	Port       string
	Schema     string
	TimeZone   string
	Categories []string

	Backend string

	// Google Sheets
	CredentialsFile string
	CredentialsJSON string
	SpreadsheetID   string
	SpreadsheetName string
	WorksheetName   string

	XLSXPath    string
	PostgresURL string
	MongoURI    string

	RedisURL string
	CacheTTL time.Duration

	NatsURL   string
	NatsToken string

	AdminJWTSecret string
	RateLimit      int
	PublicBaseURL  string
	QRFontPath     string
}

// Load reads the process environment once. Call Validate before using the
// result to open any backend.
func Load() (Config, error) {
	cfg := Config{
		Port:            getEnv("CHECKIN_SERVICE_PORT", "8080"),
		Schema:          strings.ToLower(getEnv("CHECKIN_SCHEMA", SchemaTyped)),
		TimeZone:        getEnv("CHECKIN_TIMEZONE", "Asia/Seoul"),
		Categories:      splitList(os.Getenv("CHECKIN_CATEGORIES")),
		Backend:         strings.ToLower(getEnv("STORE_BACKEND", BackendSheets)),
		CredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		CredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
		SpreadsheetID:   os.Getenv("SPREADSHEET_ID"),
		SpreadsheetName: os.Getenv("SPREADSHEET_NAME"),
		WorksheetName:   os.Getenv("WORKSHEET_NAME"),
		XLSXPath:        getEnv("XLSX_PATH", "checkins.xlsx"),
		PostgresURL:     os.Getenv("POSTGRES_URL"),
		MongoURI:        os.Getenv("MONGODB_URI"),
		RedisURL:        os.Getenv("REDIS_URL"),
		NatsURL:         os.Getenv("NATS_URL"),
		NatsToken:       os.Getenv("NATS_TOKEN"),
		AdminJWTSecret:  os.Getenv("ADMIN_JWT_SECRET"),
		PublicBaseURL:   os.Getenv("PUBLIC_BASE_URL"),
		QRFontPath:      os.Getenv("QR_FONT_PATH"),
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = append([]string(nil), DefaultCategories...)
	}
	if cfg.WorksheetName == "" {
		cfg.WorksheetName = DefaultWorksheet(cfg.Schema)
	}

	rate, err := strconv.Atoi(getEnv("RATE_LIMIT", "60"))
	if err != nil {
		return cfg, fmt.Errorf("invalid RATE_LIMIT value: %w", err)
	}
	cfg.RateLimit = rate

	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", "30s"))
	if err != nil {
		return cfg, fmt.Errorf("invalid CACHE_TTL value: %w", err)
	}
	cfg.CacheTTL = ttl

	return cfg, nil
}

// DefaultWorksheet mirrors the worksheet names the two sheet layouts were
// deployed with.
func DefaultWorksheet(schema string) string {
	if schema == SchemaLegacy {
		return "Sheet1"
	}
	return "checkins"
}

// Validate reports every missing or malformed field at once so the operator
// can fix the environment in a single pass.
func (c Config) Validate() error {
	var missing []string
	var invalid []string

	switch c.Schema {
	case SchemaLegacy, SchemaTyped:
	default:
		invalid = append(invalid, fmt.Sprintf("CHECKIN_SCHEMA=%q", c.Schema))
	}
	if c.RateLimit <= 0 {
		invalid = append(invalid, fmt.Sprintf("RATE_LIMIT=%d", c.RateLimit))
	}

	switch c.Backend {
	case BackendSheets:
		if c.CredentialsFile == "" && c.CredentialsJSON == "" {
			missing = append(missing, "GOOGLE_CREDENTIALS_FILE|GOOGLE_CREDENTIALS_JSON")
		}
		if c.SpreadsheetID == "" && c.SpreadsheetName == "" {
			missing = append(missing, "SPREADSHEET_ID|SPREADSHEET_NAME")
		}
	case BackendXLSX:
		if c.XLSXPath == "" {
			missing = append(missing, "XLSX_PATH")
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			missing = append(missing, "POSTGRES_URL")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			missing = append(missing, "MONGODB_URI")
		}
	case BackendMemory:
	default:
		invalid = append(invalid, fmt.Sprintf("STORE_BACKEND=%q", c.Backend))
	}

	switch {
	case len(missing) > 0 && len(invalid) > 0:
		return fmt.Errorf("%w: %s; invalid configuration: %s",
			ErrMissingConfig, strings.Join(missing, ", "), strings.Join(invalid, ", "))
	case len(missing) > 0:
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	case len(invalid) > 0:
		return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, ", "))
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
