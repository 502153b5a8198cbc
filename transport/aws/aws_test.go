package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/vehicleflow/transport"
	"github.com/drblury/vehicleflow/transport/transporttest"
)

type captured struct {
	accountID, region string
	publisherCfg      sns.PublisherConfig
	subscriberCfg     sns.SubscriberConfig
	sqsCfg            sqs.SubscriberConfig
}

// stubFactories replaces every factory for the duration of the test.
func stubFactories(t *testing.T, loaded aws.Config, loadErr error) (*captured, *transporttest.Publisher, *transporttest.Subscriber) {
	t.Helper()
	originalConfigLoader := DefaultConfigLoader
	originalTopicResolver := TopicResolverFactory
	originalPubFactory := PublisherFactory
	originalSubFactory := SubscriberFactory
	t.Cleanup(func() {
		DefaultConfigLoader = originalConfigLoader
		TopicResolverFactory = originalTopicResolver
		PublisherFactory = originalPubFactory
		SubscriberFactory = originalSubFactory
	})

	got := &captured{}
	pub := &transporttest.Publisher{}
	sub := &transporttest.Subscriber{}

	DefaultConfigLoader = func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return loaded, loadErr
	}
	TopicResolverFactory = func(accountID, region string) (*sns.GenerateArnTopicResolver, error) {
		got.accountID, got.region = accountID, region
		return &sns.GenerateArnTopicResolver{}, nil
	}
	PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		got.publisherCfg = cfg
		return pub, nil
	}
	SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		got.subscriberCfg, got.sqsCfg = cfg, sqsCfg
		return sub, nil
	}
	return got, pub, sub
}

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	defer func() { transport.DefaultRegistry = original }()
	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "aws", caps.Name)
	assert.True(t, caps.SupportsReliableDelivery())
	assert.Equal(t, int64(262144), caps.MaxMessageSize)
	assert.Equal(t, transport.AWSCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	got, pub, sub := stubFactories(t, aws.Config{Region: "eu-west-1"}, nil)

	cfg := &transporttest.Config{AWSRegion: "us-west-2", AWSAccountID: "123456789012"}
	tr, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)

	assert.Same(t, pub, tr.Publisher)
	assert.Same(t, sub, tr.Subscriber)
	assert.Equal(t, "123456789012", got.accountID)
	assert.Equal(t, "us-west-2", got.region)
	assert.Equal(t, "us-west-2", got.publisherCfg.AWSConfig.Region)
	assert.Empty(t, got.publisherCfg.OptFns)
	assert.NotNil(t, got.subscriberCfg.GenerateSqsQueueName)
}

func TestBuildFallsBackToDefaultRegion(t *testing.T) {
	got, _, _ := stubFactories(t, aws.Config{}, nil)

	_, err := Build(context.Background(), &transporttest.Config{AWSAccountID: "123456789012"}, watermill.NopLogger{})
	require.NoError(t, err)

	assert.Equal(t, DefaultRegion, got.region)
	assert.Equal(t, "us-east-1", got.publisherCfg.AWSConfig.Region)
}

func TestBuildUsesLoadedRegion(t *testing.T) {
	got, _, _ := stubFactories(t, aws.Config{Region: "ap-southeast-2"}, nil)

	_, err := Build(context.Background(), &transporttest.Config{AWSAccountID: "123456789012"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, "ap-southeast-2", got.region)
}

func TestBuildWithLocalstackEndpoint(t *testing.T) {
	got, _, _ := stubFactories(t, aws.Config{}, nil)

	cfg := &transporttest.Config{AWSEndpoint: "http://localhost:4566"}
	_, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)

	assert.Equal(t, localstackAccountID, got.accountID)
	assert.Len(t, got.publisherCfg.OptFns, 1)
	assert.Len(t, got.subscriberCfg.OptFns, 1)
	assert.Len(t, got.sqsCfg.OptFns, 1)
}

func TestBuildErrors(t *testing.T) {
	t.Run("config loader fails", func(t *testing.T) {
		stubFactories(t, aws.Config{}, errors.New("config error"))
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "config error")
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		stubFactories(t, aws.Config{}, nil)
		_, err := Build(context.Background(), &transporttest.Config{AWSEndpoint: "localhost"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "must be an absolute URL")
	})

	t.Run("publisher factory fails", func(t *testing.T) {
		stubFactories(t, aws.Config{}, nil)
		PublisherFactory = func(sns.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "publisher error")
	})

	t.Run("subscriber factory fails closes publisher", func(t *testing.T) {
		_, pub, _ := stubFactories(t, aws.Config{}, nil)
		SubscriberFactory = func(sns.SubscriberConfig, sqs.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, errors.New("subscriber error")
		}
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "subscriber error")
		assert.Equal(t, 1, pub.Closed)
	})

	t.Run("topic resolver fails", func(t *testing.T) {
		stubFactories(t, aws.Config{}, nil)
		TopicResolverFactory = func(string, string) (*sns.GenerateArnTopicResolver, error) {
			return nil, errors.New("resolver error")
		}
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "resolver error")
	})
}

func TestResolveAccountAndRegion(t *testing.T) {
	tests := []struct {
		name        string
		cfg         transporttest.Config
		fallback    string
		wantAccount string
		wantRegion  string
	}{
		{name: "config values", cfg: transporttest.Config{AWSAccountID: "123456789012", AWSRegion: "us-west-2"}, fallback: "us-east-1", wantAccount: "123456789012", wantRegion: "us-west-2"},
		{name: "fallback region", cfg: transporttest.Config{AWSAccountID: "123456789012"}, fallback: "eu-west-1", wantAccount: "123456789012", wantRegion: "eu-west-1"},
		{name: "default region", cfg: transporttest.Config{}, wantRegion: DefaultRegion},
		{name: "quoted account", cfg: transporttest.Config{AWSAccountID: `"123456789012"`}, fallback: "us-east-1", wantAccount: "123456789012", wantRegion: "us-east-1"},
		{name: "localstack empty account", cfg: transporttest.Config{AWSEndpoint: "http://localhost:4566"}, fallback: "us-east-1", wantAccount: localstackAccountID, wantRegion: "us-east-1"},
		{name: "localstack invalid account", cfg: transporttest.Config{AWSEndpoint: "http://localhost:4566", AWSAccountID: "42"}, fallback: "us-east-1", wantAccount: localstackAccountID, wantRegion: "us-east-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accountID, region := resolveAccountAndRegion(&tt.cfg, watermill.NopLogger{}, tt.fallback)
			assert.Equal(t, tt.wantAccount, accountID)
			assert.Equal(t, tt.wantRegion, region)
		})
	}
}

func TestQueueNameFromTopic(t *testing.T) {
	name, err := queueNameFromTopic(context.Background(), "arn:aws:sns:us-east-1:123456789012:vehicle-insert-requested")
	require.NoError(t, err)
	assert.Equal(t, "vehicle-insert-requested", name)
}

func TestEndpointOptions(t *testing.T) {
	snsOpts, sqsOpts := endpointOptions(nil)
	assert.Nil(t, snsOpts)
	assert.Nil(t, sqsOpts)

	endpoint, err := awsEndpointURL(&transporttest.Config{AWSEndpoint: "http://localhost:4566"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:4566", endpoint.Host)

	snsOpts, sqsOpts = endpointOptions(endpoint)
	assert.Len(t, snsOpts, 1)
	assert.Len(t, sqsOpts, 1)
}

func TestStaticCredentialsProvider(t *testing.T) {
	creds, err := staticCredentialsProvider("id", "secret").Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}
