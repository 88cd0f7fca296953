package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const defaultAPIURL = "http://localhost:5000/api"

// Config holds the complete client configuration, loadable from environment
// variables (FOODCART_ prefix), flags, or YAML config files.
type Config struct {
	APIURL         string        `default:"http://localhost:5000/api" usage:"Marketplace API base URL" flag:"api-url"`
	RequestTimeout time.Duration `default:"15s" usage:"Timeout for a single API request" flag:"request-timeout"`
	PollInterval   time.Duration `default:"10s" usage:"Active order status poll interval" flag:"poll-interval"`
	DeliveryFee    string        `default:"2.99" usage:"Delivery fee added to every order" flag:"delivery-fee"`
	ServiceFee     string        `default:"0.99" usage:"Service fee added to every order" flag:"service-fee"`
	StateFile      string        `default:".foodcart/state.json.gz" usage:"Where the cart and session survive restarts (empty disables)" flag:"state-file"`
	Email          string        `usage:"Sign in with this email on start" flag:"email"`
	Password       string        `usage:"Password for --email (FOODCART_PASSWORD)" flag:"password"`
	Throttle       ThrottleConfig
	Health         HealthConfig
	Promo          PromoConfig
}

// PromoConfig points at offline lists of published promo codes.
type PromoConfig struct {
	CodeFiles      []string `usage:"Gzip-compressed promo code lists, one code per line" flag:"promo-code-files"`
	FilterCapacity uint     `default:"1000000" usage:"Expected number of published promo codes"`
}

// ThrottleConfig bounds the request rate towards the API.
type ThrottleConfig struct {
	Max    int           `default:"120" usage:"Max requests per window (0 disables)"`
	Window time.Duration `default:"1m"  usage:"Throttle window duration"`
}

// HealthConfig controls the API connectivity check.
type HealthConfig struct {
	Interval time.Duration `default:"30s" usage:"Connectivity check interval" flag:"health-interval"`
}

// Fees parses the configured fee policy.
func (c *Config) Fees() (delivery, service decimal.Decimal, err error) {
	delivery, err = decimal.NewFromString(c.DeliveryFee)
	if err != nil {
		return delivery, service, errors.Wrap(err, "parse delivery fee")
	}
	service, err = decimal.NewFromString(c.ServiceFee)
	if err != nil {
		return delivery, service, errors.Wrap(err, "parse service fee")
	}
	if delivery.IsNegative() || service.IsNegative() {
		return delivery, service, errors.New("fees must not be negative")
	}
	return delivery, service, nil
}

// LoadConfig loads configuration from environment variables, YAML config
// files and flags, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FOODCART",
		Files:     []string{"foodcart.yaml", "/etc/foodcart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults lets a plain API_URL override the built-in default.
func (c *Config) applyPlatformDefaults() {
	if c.APIURL == defaultAPIURL {
		if v := os.Getenv("API_URL"); v != "" {
			c.APIURL = v
		}
	}
}

func (c *Config) validate() error {
	if c.APIURL == "" {
		return errors.New("api url is required: set FOODCART_API_URL or API_URL")
	}
	if c.RequestTimeout <= 0 {
		return errors.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.PollInterval <= 0 {
		return errors.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.Health.Interval <= 0 {
		return errors.Errorf("health interval must be positive, got %s", c.Health.Interval)
	}
	if c.Email != "" && c.Password == "" {
		return errors.New("password is required with email")
	}
	if _, _, err := c.Fees(); err != nil {
		return err
	}
	return nil
}
