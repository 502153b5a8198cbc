package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the optional YAML file at path and from
// environment variables. Keys are the mapstructure names; the matching
// environment variable is the upper-cased key, e.g. COMPLETION_TOPIC. An
// empty path reads environment and defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg = cfg.WithDefaults()
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("pubsub_system", DefaultPubSubSystem)
	v.SetDefault("inbound_topic", "vehicle-insert-requested")
	v.SetDefault("completion_topic", "")
	v.SetDefault("event_domain", DefaultEventDomain)
	v.SetDefault("echo_payload", false)
	v.SetDefault("publish_concurrency", DefaultPublishConcurrency)

	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("kafka_client_id", "vehicleflow")
	v.SetDefault("kafka_consumer_group", "vehicleflow")
	v.SetDefault("rabbitmq_url", "")
	v.SetDefault("nats_url", "")

	v.SetDefault("aws_region", DefaultAWSRegion)
	v.SetDefault("aws_account_id", "")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")
	v.SetDefault("aws_endpoint", "")

	v.SetDefault("store_driver", DefaultStoreDriver)
	v.SetDefault("postgres_url", "")
	v.SetDefault("sqlite_file", "vehicleflow.db")

	v.SetDefault("metrics_enabled", false)
	v.SetDefault("metrics_port", DefaultMetricsPort)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
}
