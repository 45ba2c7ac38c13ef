package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultPath = "configs/config.yaml"

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Addr                  string `yaml:"addr"`
		RunLocal              bool   `yaml:"run_local"`
		RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	} `yaml:"server"`
	AWS struct {
		Region   string `yaml:"region"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"aws"`
	Tables struct {
		Orders      string `yaml:"orders"`
		OrderCodes  string `yaml:"order_codes"`
		OTP         string `yaml:"otp"`
		Idempotency string `yaml:"idempotency"`
	} `yaml:"tables"`
	Orders struct {
		CodePrefix       string `yaml:"code_prefix"`
		AllocateAttempts int    `yaml:"allocate_attempts"`
		Currency         string `yaml:"currency"`
	} `yaml:"orders"`
	OTP struct {
		TTLSeconds int    `yaml:"ttl_seconds"`
		QueueURL   string `yaml:"queue_url"`
		DebugEcho  bool   `yaml:"debug_echo"`
	} `yaml:"otp"`
	Mail struct {
		From      string `yaml:"from"`
		StoreName string `yaml:"store_name"`
	} `yaml:"mail"`
	Razorpay struct {
		KeyID     string `yaml:"key_id"`
		KeySecret string `yaml:"key_secret"`
	} `yaml:"razorpay"`
	Idempotency struct {
		TTLHours int `yaml:"ttl_hours"`
	} `yaml:"idempotency"`
	Metrics struct {
		Namespace string `yaml:"namespace"`
		Disabled  bool   `yaml:"disabled"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads the YAML file at path (or CONFIG_PATH, or configs/config.yaml),
// applies environment overrides and validates the result. A missing default
// file is not an error; the environment alone can configure the service.
func Load(path string) (*Config, error) {
	explicit := true
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultPath
		explicit = false
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	switch {
	case c.Tables.Orders == "" || c.Tables.OrderCodes == "" || c.Tables.OTP == "" || c.Tables.Idempotency == "":
		return errors.New("tables.orders, tables.order_codes, tables.otp and tables.idempotency are required")
	case c.Mail.From == "":
		return errors.New("mail.from is required")
	case c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "":
		return errors.New("razorpay.key_id and razorpay.key_secret are required")
	case c.OTP.DebugEcho && c.IsProduction():
		return errors.New("otp.debug_echo must not be enabled in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTP.TTLSeconds) * time.Second
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.Idempotency.TTLHours) * time.Hour
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeoutSeconds <= 0 {
		cfg.Server.RequestTimeoutSeconds = 15
	}
	if cfg.Orders.CodePrefix == "" {
		cfg.Orders.CodePrefix = "HP"
	}
	if cfg.Orders.AllocateAttempts <= 0 {
		cfg.Orders.AllocateAttempts = 5
	}
	if cfg.Orders.Currency == "" {
		cfg.Orders.Currency = "INR"
	}
	if cfg.OTP.TTLSeconds <= 0 {
		cfg.OTP.TTLSeconds = 300
	}
	if cfg.Mail.StoreName == "" {
		cfg.Mail.StoreName = "Honey Palace"
	}
	if cfg.Idempotency.TTLHours <= 0 {
		cfg.Idempotency.TTLHours = 48
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "HoneyPalace/Orders"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("RUN_LOCAL"); v != "" {
		cfg.Server.RunLocal = boolOr(cfg.Server.RunLocal, v)
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SECONDS"); v != "" {
		cfg.Server.RequestTimeoutSeconds = atoiOr(cfg.Server.RequestTimeoutSeconds, v)
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("AWS_ENDPOINT_OVERRIDE"); v != "" {
		cfg.AWS.Endpoint = v
	}
	if v := os.Getenv("ORDERS_TABLE"); v != "" {
		cfg.Tables.Orders = v
	}
	if v := os.Getenv("ORDER_CODES_TABLE"); v != "" {
		cfg.Tables.OrderCodes = v
	}
	if v := os.Getenv("OTP_TABLE"); v != "" {
		cfg.Tables.OTP = v
	}
	if v := os.Getenv("IDEMPOTENCY_TABLE"); v != "" {
		cfg.Tables.Idempotency = v
	}
	if v := os.Getenv("ORDER_CODE_PREFIX"); v != "" {
		cfg.Orders.CodePrefix = v
	}
	if v := os.Getenv("ORDER_ALLOCATE_ATTEMPTS"); v != "" {
		cfg.Orders.AllocateAttempts = atoiOr(cfg.Orders.AllocateAttempts, v)
	}
	if v := os.Getenv("ORDER_CURRENCY"); v != "" {
		cfg.Orders.Currency = v
	}
	if v := os.Getenv("OTP_TTL_SECONDS"); v != "" {
		cfg.OTP.TTLSeconds = atoiOr(cfg.OTP.TTLSeconds, v)
	}
	if v := os.Getenv("OTP_QUEUE_URL"); v != "" {
		cfg.OTP.QueueURL = v
	}
	if v := os.Getenv("OTP_DEBUG_ECHO"); v != "" {
		cfg.OTP.DebugEcho = boolOr(cfg.OTP.DebugEcho, v)
	}
	if v := os.Getenv("MAIL_FROM"); v != "" {
		cfg.Mail.From = v
	}
	if v := os.Getenv("MAIL_STORE_NAME"); v != "" {
		cfg.Mail.StoreName = v
	}
	if v := os.Getenv("RAZORPAY_KEY_ID"); v != "" {
		cfg.Razorpay.KeyID = v
	}
	if v := os.Getenv("RAZORPAY_KEY_SECRET"); v != "" {
		cfg.Razorpay.KeySecret = v
	}
	if v := os.Getenv("IDEMPOTENCY_TTL_HOURS"); v != "" {
		cfg.Idempotency.TTLHours = atoiOr(cfg.Idempotency.TTLHours, v)
	}
	if v := os.Getenv("METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
	if v := os.Getenv("METRICS_DISABLED"); v != "" {
		cfg.Metrics.Disabled = boolOr(cfg.Metrics.Disabled, v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func boolOr(fallback bool, v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
