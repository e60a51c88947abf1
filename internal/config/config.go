package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Ledger backends.
const (
	BackendMemory  = "memory"
	BackendHorizon = "horizon"
)

// Blob store backends.
const (
	BlobMemory = "memory"
	BlobMinio  = "minio"
	BlobPinata = "pinata"
)

// Config contains server configuration parameters.
type Config struct {
	LogLevel              int      `env:"LOG_LEVEL" envDefault:"0"`
	LogJSON               bool     `env:"LOG_JSON" envDefault:"false"`
	HTTP                  HTTP     `envPrefix:"HTTP_"`
	Stellar               Stellar  `envPrefix:"STELLAR_"`
	BlobBackend           string   `env:"BLOB_BACKEND" envDefault:"memory"`
	Storage               Storage  `envPrefix:"MINIO_"`
	Pinata                Pinata   `envPrefix:"PINATA_"`
	Database              Database `envPrefix:"DATABASE_"`
	JWT                   JWT      `envPrefix:"JWT_"`
	Auth                  Auth     `envPrefix:"AUTH_"`
	IndexFetchConcurrency int      `env:"INDEX_FETCH_CONCURRENCY" envDefault:"8"`
	Hydrate               Hydrate  `envPrefix:"HYDRATE_"`
}

// HTTP contains HTTP server parameters.
type HTTP struct {
	Addr               string   `env:"ADDR" envDefault:":3000"`
	EnableHTTPS        bool     `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string   `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string   `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`
	AllowedOrigins     []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:8080" envSeparator:","`
}

// Stellar contains ledger parameters.
type Stellar struct {
	Backend           string        `env:"BACKEND" envDefault:"memory"`
	HorizonURL        string        `env:"HORIZON_URL" envDefault:"https://horizon-testnet.stellar.org"`
	NetworkPassphrase string        `env:"NETWORK_PASSPHRASE" envDefault:"Test SDF Network ; September 2015"`
	FriendbotURL      string        `env:"FRIENDBOT_URL" envDefault:"https://friendbot.stellar.org"`
	PlatformSecret    string        `env:"PLATFORM_SECRET"`
	TxTimeout         time.Duration `env:"TX_TIMEOUT" envDefault:"180s"`
	StartingBalance   string        `env:"STARTING_BALANCE" envDefault:"5"`
}

// Storage contains object storage parameters.
type Storage struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:"househelp-access-key"`
	SecretKey string `env:"SECRET_KEY" envDefault:"househelp-secret-key"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"househelp-records"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// Pinata contains pinning service parameters.
type Pinata struct {
	JWT        string `env:"JWT"`
	APIURL     string `env:"API_URL" envDefault:"https://api.pinata.cloud"`
	GatewayURL string `env:"GATEWAY_URL" envDefault:"https://gateway.pinata.cloud"`
}

// Database contains database connection parameters. An empty DSN disables
// the anchor journal.
type Database struct {
	DSN string `env:"DSN"`
}

// JWT contains JWT-related parameters.
type JWT struct {
	Secret string `env:"SECRET" envDefault:"devsecret"`
}

// Auth controls access to write routes.
type Auth struct {
	RequireToken bool `env:"REQUIRE_TOKEN" envDefault:"false"`
}

// Hydrate bounds the directory rebuild at boot.
type Hydrate struct {
	MaxAttempts uint64        `env:"MAX_ATTEMPTS" envDefault:"5"`
	BaseDelay   time.Duration `env:"BASE_DELAY" envDefault:"500ms"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	switch c.Stellar.Backend {
	case BackendMemory, BackendHorizon:
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Stellar.Backend)
	}
	switch c.BlobBackend {
	case BlobMemory, BlobMinio:
	case BlobPinata:
		if c.Pinata.JWT == "" {
			return fmt.Errorf("PINATA_JWT is required for the pinata blob backend")
		}
	default:
		return fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
	if c.IndexFetchConcurrency < 1 {
		return fmt.Errorf("index fetch concurrency must be positive")
	}
	if c.Hydrate.BaseDelay <= 0 {
		return fmt.Errorf("hydrate base delay must be positive")
	}
	return nil
}
