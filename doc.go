// Package vehicleflow ingests vehicle insert requests from a message broker,
// stores the vehicles in bulk and answers every request with a correlated
// completion event.
//
// Each inbound record carries a base64 payload and string attributes. The
// payload must decode to UTF-8 JSON describing a Vehicle (make, model,
// modelYear, vin, dln). Records that fail to decode or parse get a failure
// completion straight away; the rest are persisted with one bulk insert and
// get a success completion carrying the new row id. A completion's
// sourceEventId is the eventId of the record it answers, so callers can match
// them even though completions are published in no particular order.
//
// Service hosts the pipeline two ways: Start subscribes to the inbound topic
// of the configured transport (aws, kafka, nats, rabbitmq or channel), and
// HandleSNSEvent processes an AWS Lambda SNS event as one batch. Storage is
// PostgreSQL, SQLite or in-memory, selected by Config.StoreDriver.
//
// Only configuration problems are returned as errors. Decode, parse,
// persistence and publish failures are per record and surface as failure
// completions, logs and metrics.
package vehicleflow
