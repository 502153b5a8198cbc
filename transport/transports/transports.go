// Package transports imports the built-in transports for registration.
// Import it for side effects to make every pubsub_system value resolvable.
package transports

import (
	_ "github.com/drblury/vehicleflow/transport/aws"
	_ "github.com/drblury/vehicleflow/transport/channel"
	_ "github.com/drblury/vehicleflow/transport/kafka"
	_ "github.com/drblury/vehicleflow/transport/nats"
	_ "github.com/drblury/vehicleflow/transport/rabbitmq"
)
