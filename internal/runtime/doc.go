/*
Package runtime hosts the vehicle ingestion pipeline.

# Package Structure

## Core Service (service.go)

Service wires together:
  - the vehicle store selected by StoreDriver (opened at construction)
  - the transport, built on first use by a transport.Factory
  - the pipeline.Processor that owns the batch semantics
  - a Watermill router consuming InboundTopic in serve mode
  - HTTP servers for the Prometheus endpoint

Start runs the router; every delivered message is a batch of one record.
HandleSNSEvent is the AWS Lambda entry point and treats the whole SNS event
as one batch.

## Middleware (middleware.go)

  - LogMessages: debug logging of inbound message metadata
  - Tracer: OpenTelemetry span per message
  - Metrics: Watermill Prometheus router metrics
  - Recoverer: panic recovery

# Sub-packages

  - codec/: base64 and UTF-8 payload decoding
  - completion/: the completion envelope and its wire form
  - config/: service configuration, viper loading and validation
  - correlation/: event attribute derivation between requests and completions
  - errors/: failure kinds and sentinel errors
  - ids/: ULID and UUID generation
  - jsoncodec/: sonic-backed JSON helpers
  - logging/: logger interface and adapters
  - metadata/: message attribute maps
  - pipeline/: split, persist and publish for one batch, plus metrics
  - store/: PostgreSQL, SQLite and in-memory vehicle stores
  - transport/: factory over the transport registry

# Usage Example

	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	svc, err := runtime.TryNewService(ctx, cfg, logger, runtime.ServiceDependencies{})
	if err != nil {
		return err
	}
	defer svc.Close()

	return svc.Start(ctx)
*/
package runtime
