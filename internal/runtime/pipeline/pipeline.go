// Package pipeline turns a batch of insert requests into stored vehicles and
// one completion event per request.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/drblury/vehicleflow/internal/runtime/codec"
	"github.com/drblury/vehicleflow/internal/runtime/completion"
	"github.com/drblury/vehicleflow/internal/runtime/correlation"
	errspkg "github.com/drblury/vehicleflow/internal/runtime/errors"
	"github.com/drblury/vehicleflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/vehicleflow/internal/runtime/metadata"
	"github.com/drblury/vehicleflow/internal/runtime/vehicle"
)

const (
	// DefaultEventDomain names the request/completion event pair handled by
	// the pipeline.
	DefaultEventDomain = "insert_vehicle"
	// DefaultConcurrency bounds parsing and publishing fan-out.
	DefaultConcurrency = 8
	// SuccessMessage is attached to every successful completion.
	SuccessMessage = "vehicle persisted"

	tracerName = "github.com/drblury/vehicleflow/pipeline"
)

// Record is one inbound notification: an encoded payload plus its attributes.
type Record struct {
	Payload    string
	Attributes metadatapkg.Metadata
}

// Store persists a batch of vehicles and returns one id per vehicle, in order.
type Store interface {
	InsertVehicles(ctx context.Context, vehicles []vehicle.Vehicle) ([]string, error)
}

// Options configures a Processor.
type Options struct {
	// Topic receives every completion event.
	Topic string
	// EventDomain prefixes the completion event type. Defaults to
	// DefaultEventDomain.
	EventDomain string
	// EchoPayload includes the stored vehicle in successful completions.
	EchoPayload bool
	// Concurrency bounds parsing and publishing. Defaults to
	// DefaultConcurrency.
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.EventDomain == "" {
		o.EventDomain = DefaultEventDomain
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Report summarises one ProcessBatch call.
type Report struct {
	Received        int
	Parsed          int
	Failed          int
	Persisted       int
	Published       int
	PublishFailures int
}

// Processor runs batches through split, persist and publish.
type Processor struct {
	opts      Options
	store     Store
	publisher message.Publisher
	logger    logging.ServiceLogger
	metrics   *Metrics
	deriver   correlation.Deriver
	tracer    trace.Tracer
}

// NewProcessor validates its collaborators. A nil logger discards output and
// nil metrics record nothing.
func NewProcessor(opts Options, store Store, publisher message.Publisher, logger logging.ServiceLogger, metrics *Metrics) (*Processor, error) {
	if opts.Topic == "" {
		return nil, errspkg.New(errspkg.ErrConfiguration, "new processor", errspkg.ErrTopicRequired)
	}
	if store == nil {
		return nil, errspkg.New(errspkg.ErrConfiguration, "new processor", errspkg.ErrStoreRequired)
	}
	if publisher == nil {
		return nil, errspkg.New(errspkg.ErrConfiguration, "new processor", errspkg.ErrPublisherRequired)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	opts = opts.withDefaults()
	return &Processor{
		opts:      opts,
		store:     store,
		publisher: publisher,
		logger:    logger.With(logging.LogFields{logging.FieldTopic: opts.Topic}),
		metrics:   metrics,
		deriver:   correlation.Deriver{Domain: opts.EventDomain},
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// Options returns the effective options.
func (p *Processor) Options() Options {
	return p.opts
}

type parsed struct {
	index   int
	attrs   correlation.Attributes
	vehicle vehicle.Vehicle
	err     error
}

// ProcessBatch handles every record of the batch and returns once each record
// had exactly one publish attempt. Record-level failures become failure
// completions and are never returned; the error result is reserved for
// configuration problems.
func (p *Processor) ProcessBatch(ctx context.Context, records []Record) (Report, error) {
	if p == nil {
		return Report{}, errspkg.New(errspkg.ErrConfiguration, "process batch", errspkg.ErrServiceRequired)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now()
	ctx, span := p.tracer.Start(ctx, "ProcessBatch", trace.WithAttributes(
		attribute.Int("batch.size", len(records)),
		attribute.String("messaging.destination", p.opts.Topic),
	))
	defer span.End()

	report := Report{Received: len(records)}
	results := p.split(records)

	var successes, failures []parsed
	for _, r := range results {
		p.metrics.recordParsed(r.err == nil)
		if r.err != nil {
			failures = append(failures, r)
			continue
		}
		successes = append(successes, r)
	}
	report.Parsed = len(successes)

	var published, publishFailures atomic.Int64
	publish := &errgroup.Group{}
	publish.SetLimit(p.opts.Concurrency)

	emit := func(attrs correlation.Attributes, env completion.Envelope) {
		publish.Go(func() error {
			if p.publish(ctx, attrs, env) {
				published.Add(1)
			} else {
				publishFailures.Add(1)
			}
			return nil
		})
	}

	for _, f := range failures {
		p.logger.Error("record rejected", f.err, p.recordFields(f))
		emit(p.deriver.DeriveCompletion(f.attrs, nil), completion.Failed(f.err))
	}

	persisted := p.persist(ctx, successes)
	if persisted.err != nil {
		span.RecordError(persisted.err)
		span.SetStatus(codes.Error, "persist vehicles")
		p.logger.Error("persist vehicles failed", persisted.err, logging.LogFields{
			logging.FieldBatchSize: len(successes),
		})
		for _, s := range successes {
			emit(p.deriver.DeriveCompletion(s.attrs, nil), completion.Failed(persisted.err))
		}
		report.Failed = len(failures) + len(successes)
	} else {
		report.Persisted = len(persisted.ids)
		p.metrics.recordPersisted(len(persisted.ids))
		for i, s := range successes {
			id := persisted.ids[i]
			emit(p.deriver.DeriveCompletion(s.attrs, &id), completion.Succeeded(id, persisted.payloads[i], SuccessMessage))
		}
		report.Failed = len(failures)
	}

	_ = publish.Wait()
	report.Published = int(published.Load())
	report.PublishFailures = int(publishFailures.Load())

	span.SetAttributes(
		attribute.Int("batch.parsed", report.Parsed),
		attribute.Int("batch.failed", report.Failed),
		attribute.Int("batch.persisted", report.Persisted),
		attribute.Int("batch.publish_failures", report.PublishFailures),
	)
	p.metrics.observeBatch(len(records), time.Since(started))
	p.logger.Debug("batch processed", logging.LogFields{
		logging.FieldBatchSize: len(records),
		"parsed":               report.Parsed,
		"failed":               report.Failed,
		"published":            report.Published,
		"publish_failures":     report.PublishFailures,
	})

	return report, nil
}

// split parses every record concurrently. Results keep input order.
func (p *Processor) split(records []Record) []parsed {
	results := make([]parsed, len(records))

	g := &errgroup.Group{}
	g.SetLimit(p.opts.Concurrency)
	for i := range records {
		g.Go(func() error {
			results[i] = parseRecord(i, records[i])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func parseRecord(index int, r Record) parsed {
	out := parsed{index: index, attrs: correlation.FromWire(r.Attributes)}

	text, err := codec.DecodeText(r.Payload)
	if err != nil {
		out.err = err
		return out
	}
	out.vehicle, out.err = vehicle.Parse(text)
	return out
}

type persistResult struct {
	ids      []string
	payloads []*string
	err      error
}

func (p *Processor) persist(ctx context.Context, successes []parsed) persistResult {
	if len(successes) == 0 {
		return persistResult{}
	}

	vehicles := make([]vehicle.Vehicle, len(successes))
	for i, s := range successes {
		vehicles[i] = s.vehicle
	}

	ids, err := p.store.InsertVehicles(ctx, vehicles)
	if err != nil {
		if errspkg.KindOf(err) == nil {
			err = errspkg.New(errspkg.ErrPersistence, "insert vehicles", err)
		}
		return persistResult{err: err}
	}
	if len(ids) != len(vehicles) {
		return persistResult{err: errspkg.Newf(errspkg.ErrPersistence, "insert vehicles",
			"store returned %d ids for %d vehicles", len(ids), len(vehicles))}
	}

	payloads := make([]*string, len(vehicles))
	if p.opts.EchoPayload {
		for i, v := range vehicles {
			body, err := v.Marshal()
			if err != nil {
				p.logger.Error("echo payload failed", err, logging.LogFields{logging.FieldRecord: successes[i].index})
				continue
			}
			text := string(body)
			payloads[i] = &text
		}
	}

	return persistResult{ids: ids, payloads: payloads}
}

// publish makes the single publish attempt for one completion. Failures are
// logged and counted, never retried.
func (p *Processor) publish(ctx context.Context, attrs correlation.Attributes, env completion.Envelope) bool {
	err := PublishCompletion(ctx, p.publisher, p.opts.Topic, attrs, env)
	if err != nil {
		p.metrics.recordPublishFailure()
		p.logger.Error("publish completion failed", err, completionFields(attrs))
		return false
	}
	p.metrics.recordPublished(env.Success)
	p.logger.Trace("completion published", completionFields(attrs))
	return true
}

func (p *Processor) recordFields(r parsed) logging.LogFields {
	return logging.LogFields{
		logging.FieldRecord:    r.index,
		logging.FieldEventID:   r.attrs.EventID,
		logging.FieldErrorKind: kindName(r.err),
	}
}

func completionFields(attrs correlation.Attributes) logging.LogFields {
	fields := logging.LogFields{logging.FieldEventID: attrs.EventID}
	if attrs.SourceEventID != nil {
		fields[logging.FieldSourceEventID] = *attrs.SourceEventID
	}
	return fields
}

func kindName(err error) string {
	if kind := errspkg.KindOf(err); kind != nil {
		return kind.Error()
	}
	return fmt.Sprintf("%T", err)
}
