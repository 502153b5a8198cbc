package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/vehicleflow/transport"
	"github.com/drblury/vehicleflow/transport/transporttest"
)

func stubFactories(t *testing.T) (*transporttest.Publisher, *transporttest.Subscriber, *kafka.PublisherConfig, *kafka.SubscriberConfig) {
	t.Helper()
	originalPubFactory := PublisherFactory
	originalSubFactory := SubscriberFactory
	t.Cleanup(func() {
		PublisherFactory = originalPubFactory
		SubscriberFactory = originalSubFactory
	})

	pub := &transporttest.Publisher{}
	sub := &transporttest.Subscriber{}
	pubCfg := &kafka.PublisherConfig{}
	subCfg := &kafka.SubscriberConfig{}
	PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		*pubCfg = cfg
		return pub, nil
	}
	SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		*subCfg = cfg
		return sub, nil
	}
	return pub, sub, pubCfg, subCfg
}

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	defer func() { transport.DefaultRegistry = original }()
	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "kafka", caps.Name)
	assert.True(t, caps.SupportsOrdering)
	assert.True(t, caps.Durable)
	assert.Equal(t, transport.KafkaCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	pub, sub, pubCfg, subCfg := stubFactories(t)

	cfg := &transporttest.Config{
		KafkaBrokers:       []string{"localhost:9092"},
		KafkaClientID:      "ingest-1",
		KafkaConsumerGroup: "vehicle-ingest",
	}
	tr, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)

	assert.Same(t, pub, tr.Publisher)
	assert.Same(t, sub, tr.Subscriber)
	assert.Equal(t, []string{"localhost:9092"}, pubCfg.Brokers)
	assert.Equal(t, "ingest-1", pubCfg.OverwriteSaramaConfig.ClientID)
	assert.True(t, pubCfg.OTELEnabled)
	assert.Equal(t, "vehicle-ingest", subCfg.ConsumerGroup)
	assert.Equal(t, "ingest-1", subCfg.OverwriteSaramaConfig.ClientID)
}

func TestBuildDefaultClientID(t *testing.T) {
	_, _, pubCfg, subCfg := stubFactories(t)

	_, err := Build(context.Background(), &transporttest.Config{KafkaBrokers: []string{"b:9092"}}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, DefaultClientID, pubCfg.OverwriteSaramaConfig.ClientID)
	assert.Equal(t, DefaultClientID, subCfg.OverwriteSaramaConfig.ClientID)
}

func TestBuildErrors(t *testing.T) {
	t.Run("publisher factory fails", func(t *testing.T) {
		stubFactories(t)
		PublisherFactory = func(kafka.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.EqualError(t, err, "publisher error")
	})

	t.Run("subscriber factory fails closes publisher", func(t *testing.T) {
		pub, _, _, _ := stubFactories(t)
		SubscriberFactory = func(kafka.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, errors.New("subscriber error")
		}
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.EqualError(t, err, "subscriber error")
		assert.Equal(t, 1, pub.Closed)
	})
}
