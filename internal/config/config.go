// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/masterlist/internal/logger"
	"github.com/woozymasta/masterlist/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server     Server        `group:"Server Options" env-namespace:"MASTERLIST"`
	Registry   Registry      `group:"Registry Options" namespace:"registry" env-namespace:"MASTERLIST_REGISTRY"`
	Validation Validation    `group:"Connection Validation Options" namespace:"validation" env-namespace:"MASTERLIST_VALIDATION"`
	Policy     Policy        `group:"Announce Policy Options" namespace:"policy" env-namespace:"MASTERLIST_POLICY"`
	Bans       Bans          `group:"Ban Options" namespace:"bans" env-namespace:"MASTERLIST_BANS"`
	Storage    Storage       `group:"Storage Options" namespace:"db" env-namespace:"MASTERLIST_DB"`
	GeoIP      GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"MASTERLIST_GEOIP"`
	RateLimit  RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"MASTERLIST_RATE_LIMIT"`
	Logger     logger.Config `group:"Logger Options" namespace:"log" env-namespace:"MASTERLIST_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address     string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	MaxBodySize int64  `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"65536"`
	TrustProxy  bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	TLSCert     string `long:"tls-cert" env:"TLS_CERT" description:"Path to TLS certificate (PEM); enables HTTPS together with --tls-key"`
	TLSKey      string `long:"tls-key" env:"TLS_KEY" description:"Path to TLS private key (PEM)"`
}

// Registry holds server list timing configuration.
type Registry struct {
	// betteralign:ignore

	ServerTimeout time.Duration `long:"server-timeout" env:"SERVER_TIMEOUT" description:"Time a server stays listed without re-announcing" default:"30s"`
	SweepInterval time.Duration `long:"sweep-interval" env:"SWEEP_INTERVAL" description:"Tick of the background sweep task" default:"2s"`
	MaxQuiescence time.Duration `long:"max-quiescence" env:"MAX_QUIESCENCE" description:"Force a sweep after this long without one" default:"30m"`
}

// Validation holds connection validation configuration.
type Validation struct {
	// betteralign:ignore

	Mode          string        `long:"mode" env:"MODE" description:"Connection validation mode" choice:"none" choice:"tcp" choice:"a2s" default:"none"`
	ListenTimeout time.Duration `long:"listen-timeout" env:"LISTEN_TIMEOUT" description:"Timeout of a single probe attempt" default:"300ms"`
	RetryCount    int           `long:"retry-count" env:"RETRY_COUNT" description:"Probe attempts before giving up" default:"3"`
	BufferSize    uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"A2S response buffer size" default:"1400"`
}

// Policy holds announce field validation configuration.
type Policy struct {
	// betteralign:ignore

	SkipNameCheck      bool     `long:"skip-name-check" env:"SKIP_NAME_CHECK" description:"Do not validate server names"`
	MinNameLength      int      `long:"min-name-length" env:"MIN_NAME_LENGTH" description:"Minimum server name length" default:"3"`
	MaxNameLength      int      `long:"max-name-length" env:"MAX_NAME_LENGTH" description:"Maximum server name length" default:"32"`
	AllowedChars       string   `long:"allowed-chars" env:"ALLOWED_CHARS" description:"Characters allowed in server names" default:"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_ "`
	AllowedChecksums   []uint32 `long:"allowed-checksum" env:"ALLOWED_CHECKSUMS" env-delim:"," description:"Allowed build checksums (empty allows all)"`
	AllowedSDKVersions []string `long:"allowed-sdk-version" env:"ALLOWED_SDK_VERSIONS" env-delim:"," description:"Allowed SDK versions (empty allows all)"`
}

// Bans holds ban checker configuration.
type Bans struct {
	// betteralign:ignore

	FailOpen bool `long:"fail-open" env:"FAIL_OPEN" description:"Treat players as not banned when the ban store fails (default is banned)"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path          string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"masterlist.db"`
	PruneExpired  bool   `long:"prune-expired" description:"Delete bans whose unban date has passed and exit"`
	AddUser       string `long:"add-user" description:"Create an operator account; the first login sets its password" value-name:"NAME"`
	PutEULA       string `long:"put-eula" description:"Store the contents of FILE as the next EULA version and exit" value-name:"FILE"`
	EULALang      string `long:"eula-lang" description:"Language of the EULA stored by --db-put-eula" default:"english"`
	GenerateCount int    `long:"gen-fake-bans" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"masterlist.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
	Disable  bool          `long:"disable" env:"DISABLE" description:"Do not resolve server regions"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"60"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print(os.Stdout)
		os.Exit(0)
	}

	return cfg
}

// ParseArgs parses args and the environment without exiting the process.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return errors.New("both --tls-cert and --tls-key are required to enable TLS")
	}
	if c.Registry.ServerTimeout < time.Second {
		return fmt.Errorf("--registry-server-timeout must be at least 1s, got %s", c.Registry.ServerTimeout)
	}
	if c.Policy.MinNameLength < 0 || c.Policy.MaxNameLength < c.Policy.MinNameLength {
		return fmt.Errorf("invalid server name length bounds [%d, %d]", c.Policy.MinNameLength, c.Policy.MaxNameLength)
	}
	if c.RateLimit.HardLimitCount <= 0 || c.RateLimit.HardLimitWin <= 0 {
		return errors.New("rate limit count and window must be positive")
	}

	return nil
}

// TLSEnabled reports whether HTTPS is configured.
func (c *Config) TLSEnabled() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}
