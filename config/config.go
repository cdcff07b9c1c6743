package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	SessionExpiration time.Duration `env:"SESSION_EXPIRATION" envDefault:"24h"`
	Postgres          Postgres
	Redis             Redis
	HTTP              HTTP
	Telegram          Telegram
	API               API
	Cache             Cache
	Jobs              Jobs
	GoogleDrive       GoogleDrive
	Ledger            Ledger
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT" envDefault:"5432"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`
	MigrationDir    string `env:"PG_MIGRATION_DIR" envDefault:"data/migrations"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type HTTP struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	SecureCookie    bool          `env:"HTTP_SECURE_COOKIE" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Telegram bot is disabled when Token is empty.
type Telegram struct {
	Token            string        `env:"TELEGRAM_TOKEN" envDefault:""`
	UpdTimeout       time.Duration `env:"TELEGRAM_UPD_TIMEOUT" envDefault:"10s"`
	FileLimitInBytes int           `env:"TELEGRAM_FILE_LIMIT_IN_BYTES" envDefault:"50000000"`
}

type API struct {
	Debug    bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout  time.Duration `env:"API_TIMEOUT" envDefault:"5s"`
	QuoteApi QuoteApi
}

type QuoteApi struct {
	Url   string `env:"QUOTE_API_URL" envDefault:"https://cloud.iexapis.com"`
	Token string `env:"API_KEY"`
}

type Cache struct {
	QuotesExpiration time.Duration `env:"CACHE_QUOTES_EXPIRATION" envDefault:"1m"`
}

type Jobs struct {
	RefreshPricesInterval time.Duration `env:"REFRESH_PRICES_JOB_INTERVAL" envDefault:"15m"`
	AuditLedgerCrontab    string        `env:"AUDIT_LEDGER_JOB_CRONTAB" envDefault:"0 0 3 * * *"`
	CleanupReportsCrontab string        `env:"CLEANUP_REPORTS_JOB_CRONTAB" envDefault:"0 30 3 * * *"`
}

// Report upload to Google Drive is disabled when CredentialsFile is empty.
type GoogleDrive struct {
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE" envDefault:""`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"24h"`
}

type Ledger struct {
	StartingCash decimal.Decimal `env:"STARTING_CASH" envDefault:"10000.00"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	if cfg.Ledger.StartingCash.IsNegative() {
		log.Fatalf("parse config error: STARTING_CASH must not be negative")
	}

	return cfg
}
