package transport

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/vehicleflow/internal/runtime/config"
	errspkg "github.com/drblury/vehicleflow/internal/runtime/errors"
	pubsub "github.com/drblury/vehicleflow/transport"

	// Register the built-in transports.
	_ "github.com/drblury/vehicleflow/transport/transports"
)

// Transport is the publisher/subscriber pair used by the service.
type Transport = pubsub.Transport

// Factory abstracts how the service initialises its message transport.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)

// Build calls f.
func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory returns the factory backed by the transport registry.
func DefaultFactory() Factory {
	return defaultFactory{}
}

type defaultFactory struct{}

func (defaultFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, errspkg.New(errspkg.ErrConfiguration, "build transport", fmt.Errorf("config is required"))
	}

	t, err := pubsub.Build(ctx, conf, logger)
	if err != nil {
		return Transport{}, errspkg.New(errspkg.ErrConfiguration, "build transport", err)
	}
	return t, nil
}
