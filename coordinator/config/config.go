package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HttpApiConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
}

func (c *HttpApiConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StateConfig struct {
	DBDSN         string `mapstructure:"dbdsn"`
	KeystoreDBDSN string `mapstructure:"keystore_dbdsn"`
}

type KafkaConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	BrokerEndpoint     string        `mapstructure:"broker_endpoint"`
	Topic              string        `mapstructure:"topic"`
	ProducerUsername   string        `mapstructure:"producer_username"`
	ProducerPassword   string        `mapstructure:"producer_password"`
	TrustStorePath     string        `mapstructure:"truststore_path"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

type NotifierConfig struct {
	HistorySize  int    `mapstructure:"history_size"`
	FileLogPath  string `mapstructure:"file_log_path"`
	FileLockPath string `mapstructure:"file_lock_path"`
}

type SigningConfig struct {
	// FreshnessWindow bounds how old a signature's signedAt may be at
	// verification time (replay protection).
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
	// DefaultTTL is applied when a createProposal request carries no ttl.
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

type SweeperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type GasConfig struct {
	// GasPrice in wei, decimal string.
	GasPrice string `mapstructure:"gas_price"`
}

type Config struct {
	HttpApiConfig  *HttpApiConfig  `mapstructure:"http_api"`
	StateConfig    *StateConfig    `mapstructure:"state"`
	KafkaConfig    *KafkaConfig    `mapstructure:"kafka"`
	NotifierConfig *NotifierConfig `mapstructure:"notifier"`
	SigningConfig  *SigningConfig  `mapstructure:"signing"`
	SweeperConfig  *SweeperConfig  `mapstructure:"sweeper"`
	GasConfig      *GasConfig      `mapstructure:"gas"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_api.host", "localhost")
	v.SetDefault("http_api.port", 8080)
	v.SetDefault("state.dbdsn", "./quorumd_state")
	v.SetDefault("state.keystore_dbdsn", "./quorumd_key_store")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "notifications")
	v.SetDefault("kafka.timeout", 10*time.Second)
	v.SetDefault("notifier.history_size", 64)
	v.SetDefault("notifier.file_log_path", "./quorumd_notifications.log")
	v.SetDefault("notifier.file_lock_path", "/tmp/quorumd_notifications_lock")
	v.SetDefault("signing.freshness_window", 5*time.Minute)
	v.SetDefault("signing.default_ttl", 24*time.Hour)
	v.SetDefault("sweeper.interval", time.Minute)
	v.SetDefault("gas.gas_price", "1000000000")
}

// Load reads the config file at path (optional) with QUORUMD_-prefixed
// environment variables taking precedence over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("QUORUMD")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
