package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Port            string
	DatabaseURL     string
	RedisAddr       string
	RabbitMQURL     string
	ReceiptQueue    string
	// ConsumeReceipts runs the AMQP receipt consumer inside the API process.
	ConsumeReceipts bool
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	QueueBatchSize     int
	QueueBatchInterval time.Duration
	QueueApplyTimeout  time.Duration

	CacheTTL time.Duration
	DedupTTL time.Duration

	SendConcurrency int
	Vendor          VendorConfig
}

// VendorConfig selects and tunes the message vendor adapter.
type VendorConfig struct {
	Mode string // simulator or twilio

	AcceptFailureRate   float64
	DeliveryFailureRate float64
	SendLatency         time.Duration
	DeliveryDelay       time.Duration
	NodeID              int64

	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioFromNumber        string
	TwilioStatusCallbackURL string
}

const (
	VendorModeSimulator = "simulator"
	VendorModeTwilio    = "twilio"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RECEIPT_QUEUE_NAME", "delivery_receipts")
	v.SetDefault("CONSUME_RECEIPTS", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("QUEUE_BATCH_SIZE", 50)
	v.SetDefault("QUEUE_BATCH_INTERVAL", "1s")
	v.SetDefault("QUEUE_APPLY_TIMEOUT", "30s")
	v.SetDefault("CACHE_TTL", "15m")
	v.SetDefault("DEDUP_TTL", "24h")
	v.SetDefault("SEND_CONCURRENCY", 1)
	v.SetDefault("VENDOR_MODE", VendorModeSimulator)
	v.SetDefault("SIM_ACCEPT_FAILURE_RATE", 0.1)
	v.SetDefault("SIM_DELIVERY_FAILURE_RATE", 0.05)
	v.SetDefault("SIM_SEND_LATENCY", "0s")
	v.SetDefault("SIM_DELIVERY_DELAY", "2s")
	v.SetDefault("SIM_NODE_ID", 1)
	v.SetDefault("TWILIO_ACCOUNT_SID", "")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_FROM_NUMBER", "")
	v.SetDefault("TWILIO_STATUS_CALLBACK_URL", "")
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, relying on OS environment variables")
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Port:               v.GetString("PORT"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RabbitMQURL:        v.GetString("RABBITMQ_URL"),
		ReceiptQueue:       v.GetString("RECEIPT_QUEUE_NAME"),
		ConsumeReceipts:    v.GetBool("CONSUME_RECEIPTS"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),
		QueueBatchSize:     v.GetInt("QUEUE_BATCH_SIZE"),
		QueueBatchInterval: v.GetDuration("QUEUE_BATCH_INTERVAL"),
		QueueApplyTimeout:  v.GetDuration("QUEUE_APPLY_TIMEOUT"),
		CacheTTL:           v.GetDuration("CACHE_TTL"),
		DedupTTL:           v.GetDuration("DEDUP_TTL"),
		SendConcurrency:    v.GetInt("SEND_CONCURRENCY"),
		Vendor: VendorConfig{
			Mode:                    v.GetString("VENDOR_MODE"),
			AcceptFailureRate:       v.GetFloat64("SIM_ACCEPT_FAILURE_RATE"),
			DeliveryFailureRate:     v.GetFloat64("SIM_DELIVERY_FAILURE_RATE"),
			SendLatency:             v.GetDuration("SIM_SEND_LATENCY"),
			DeliveryDelay:           v.GetDuration("SIM_DELIVERY_DELAY"),
			NodeID:                  v.GetInt64("SIM_NODE_ID"),
			TwilioAccountSID:        v.GetString("TWILIO_ACCOUNT_SID"),
			TwilioAuthToken:         v.GetString("TWILIO_AUTH_TOKEN"),
			TwilioFromNumber:        v.GetString("TWILIO_FROM_NUMBER"),
			TwilioStatusCallbackURL: v.GetString("TWILIO_STATUS_CALLBACK_URL"),
		},
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.QueueBatchSize < 1 {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be at least 1, got %d", c.QueueBatchSize)
	}
	if c.QueueBatchInterval < 0 {
		return fmt.Errorf("QUEUE_BATCH_INTERVAL must not be negative")
	}
	if c.SendConcurrency < 1 {
		c.SendConcurrency = 1
	}
	for name, rate := range map[string]float64{
		"SIM_ACCEPT_FAILURE_RATE":   c.Vendor.AcceptFailureRate,
		"SIM_DELIVERY_FAILURE_RATE": c.Vendor.DeliveryFailureRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, rate)
		}
	}
	switch c.Vendor.Mode {
	case VendorModeSimulator:
	case VendorModeTwilio:
		if c.Vendor.TwilioAccountSID == "" || c.Vendor.TwilioAuthToken == "" || c.Vendor.TwilioFromNumber == "" {
			return fmt.Errorf("twilio vendor mode requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER")
		}
	default:
		return fmt.Errorf("unknown VENDOR_MODE %q", c.Vendor.Mode)
	}
	return nil
}
