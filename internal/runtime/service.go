package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/aws/aws-lambda-go/events"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/drblury/vehicleflow/internal/runtime/config"
	errspkg "github.com/drblury/vehicleflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/vehicleflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/vehicleflow/internal/runtime/metadata"
	"github.com/drblury/vehicleflow/internal/runtime/pipeline"
	storepkg "github.com/drblury/vehicleflow/internal/runtime/store"
	transportpkg "github.com/drblury/vehicleflow/internal/runtime/transport"
	pubsub "github.com/drblury/vehicleflow/transport"
)

// HandlerName names the router handler that consumes insert requests.
const HandlerName = "vehicleflow_insert_vehicle"

const httpShutdownTimeout = 5 * time.Second

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

var openStore = storepkg.Open

// ServiceDependencies holds the optional collaborators that the Service can use.
type ServiceDependencies struct {
	// TransportFactory builds the publisher/subscriber pair. Defaults to the
	// registry-backed factory.
	TransportFactory transportpkg.Factory
	// Store replaces the store selected by Conf.StoreDriver. A supplied store
	// is not closed by the Service.
	Store pipeline.Store
	// Registerer receives pipeline and router metrics. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Middlewares are appended after the default middleware chain.
	Middlewares []MiddlewareRegistration
	// DisableDefaultMiddlewares skips the default middleware chain.
	DisableDefaultMiddlewares bool
}

// Service hosts the ingestion pipeline, either as a long running subscriber
// (Start) or as a Lambda handler (HandleSNSEvent). The transport is built on
// first use.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	wmLogger   watermill.LoggerAdapter
	factory    transportpkg.Factory
	registerer prometheus.Registerer
	metrics    *pipeline.Metrics

	store      pipeline.Store
	closeStore func() error

	initOnce  sync.Once
	initErr   error
	transport transportpkg.Transport
	processor *pipeline.Processor

	router *message.Router

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewService is TryNewService for callers that treat a broken setup as fatal.
func NewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) *Service {
	s, err := TryNewService(ctx, conf, log, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService validates the configuration, opens the store and prepares the
// router. No broker connection is made until the first batch or Start.
func TryNewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.Newf(errspkg.ErrConfiguration, "new service", "config is required")
	}
	if log == nil {
		return nil, errspkg.New(errspkg.ErrConfiguration, "new service", errspkg.ErrLoggerRequired)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	log.Info("Creating ingestion service", loggingpkg.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"config":        conf,
	})

	s := &Service{
		Conf:       conf,
		Logger:     log,
		wmLogger:   loggingpkg.NewWatermillAdapter(log),
		factory:    deps.TransportFactory,
		registerer: deps.Registerer,
	}
	if s.factory == nil {
		s.factory = transportpkg.DefaultFactory()
	}
	if s.registerer == nil {
		s.registerer = prometheus.DefaultRegisterer
	}

	s.metrics = pipeline.NewMetrics(s.registerer)
	if conf.MetricsEnabled {
		if err := s.metrics.Register(); err != nil {
			return nil, errspkg.New(errspkg.ErrConfiguration, "register metrics", err)
		}
	}

	if deps.Store != nil {
		s.store = deps.Store
	} else {
		st, err := openStore(ctx, storepkg.Config{
			Driver:      conf.StoreDriver,
			PostgresURL: conf.PostgresURL,
			SQLiteFile:  conf.SQLiteFile,
		})
		if err != nil {
			return nil, err
		}
		s.store = st
		s.closeStore = st.Close
	}

	router, err := message.NewRouter(message.RouterConfig{}, s.wmLogger)
	if err != nil {
		s.closeOwnedStore()
		return nil, errspkg.New(errspkg.ErrConfiguration, "new router", err)
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		s.closeOwnedStore()
		return nil, err
	}

	return s, nil
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return errspkg.New(errspkg.ErrConfiguration, "register middleware "+name, err)
		}
	}
	return nil
}

// ready builds the transport and processor exactly once. A failure is sticky.
func (s *Service) ready(ctx context.Context) error {
	s.initOnce.Do(func() {
		tr, err := s.factory.Build(ctx, s.Conf, s.wmLogger)
		if err != nil {
			s.initErr = err
			return
		}

		processor, err := pipeline.NewProcessor(
			pipeline.Options{
				Topic:       s.Conf.CompletionTopic,
				EventDomain: s.Conf.EventDomain,
				EchoPayload: s.Conf.EchoPayload,
				Concurrency: s.Conf.PublishConcurrency,
			},
			s.store,
			tr.Publisher,
			s.Logger,
			s.metrics,
		)
		if err != nil {
			_ = tr.Close()
			s.initErr = err
			return
		}

		s.transport = tr
		s.processor = processor

		caps := pubsub.GetCapabilities(s.Conf.PubSubSystem)
		s.Logger.Info("Transport ready", loggingpkg.LogFields{
			"pubsub_system":       s.Conf.PubSubSystem,
			loggingpkg.FieldTopic: s.Conf.CompletionTopic,
			"durable":             caps.Durable,
			"reliable_delivery":   caps.SupportsReliableDelivery(),
			"max_message_size":    caps.MaxMessageSize,
		})
	})
	return s.initErr
}

// ProcessBatch runs records through the pipeline. Only configuration errors
// are returned; record failures are reported as completion events.
func (s *Service) ProcessBatch(ctx context.Context, records []pipeline.Record) (pipeline.Report, error) {
	if err := s.ready(ctx); err != nil {
		return pipeline.Report{}, err
	}
	return s.processor.ProcessBatch(ctx, records)
}

// HandleSNSEvent is the Lambda entry point. The whole event is one batch.
func (s *Service) HandleSNSEvent(ctx context.Context, event events.SNSEvent) error {
	records := RecordsFromSNSEvent(event)
	report, err := s.ProcessBatch(ctx, records)
	if err != nil {
		s.Logger.Error("Failed to process SNS event", err, loggingpkg.LogFields{
			loggingpkg.FieldBatchSize: len(records),
		})
		return err
	}

	s.Logger.Info("Processed SNS event", loggingpkg.LogFields{
		loggingpkg.FieldBatchSize: report.Received,
		"failed":                  report.Failed,
		"persisted":               report.Persisted,
		"published":               report.Published,
		"publish_failures":        report.PublishFailures,
	})
	return nil
}

// RecordsFromSNSEvent converts SNS notifications into pipeline records. The
// message body is the encoded payload and every message attribute value
// becomes a metadata entry.
func RecordsFromSNSEvent(event events.SNSEvent) []pipeline.Record {
	records := make([]pipeline.Record, 0, len(event.Records))
	for _, r := range event.Records {
		records = append(records, pipeline.Record{
			Payload:    r.SNS.Message,
			Attributes: attributesFromSNS(r.SNS.MessageAttributes),
		})
	}
	return records
}

// attributesFromSNS flattens {"Type": ..., "Value": ...} attribute objects.
func attributesFromSNS(attrs map[string]interface{}) metadatapkg.Metadata {
	md := make(metadatapkg.Metadata, len(attrs))
	for key, raw := range attrs {
		switch v := raw.(type) {
		case string:
			md[key] = v
		case map[string]interface{}:
			if value, ok := v["Value"].(string); ok {
				md[key] = value
			}
		}
	}
	return md
}

// Start subscribes to the inbound topic and runs the router until ctx is
// cancelled. Every delivered message is processed as a batch of one.
func (s *Service) Start(ctx context.Context) error {
	if s.Conf.InboundTopic == "" {
		return errspkg.Newf(errspkg.ErrConfiguration, "start", "inbound topic is required")
	}
	if err := s.ready(ctx); err != nil {
		return err
	}

	s.router.AddNoPublisherHandler(
		HandlerName,
		s.Conf.InboundTopic,
		s.transport.Subscriber,
		s.handleMessage,
	)

	stop := s.startHTTPServers()
	defer stop()

	return routerRun(s.router, ctx)
}

func (s *Service) handleMessage(msg *message.Message) error {
	record := pipeline.Record{
		Payload:    string(msg.Payload),
		Attributes: metadatapkg.FromWatermill(msg.Metadata),
	}
	_, err := s.processor.ProcessBatch(msg.Context(), []pipeline.Record{record})
	return err
}

// Close releases the transport and any store opened by the Service.
func (s *Service) Close() error {
	var errs []error
	if s.router != nil && s.router.IsRunning() {
		errs = append(errs, s.router.Close())
	}
	if s.processor != nil {
		errs = append(errs, s.transport.Close())
	}
	errs = append(errs, s.closeOwnedStore())
	return errors.Join(errs...)
}

func (s *Service) closeOwnedStore() error {
	if s.closeStore == nil {
		return nil
	}
	closeFn := s.closeStore
	s.closeStore = nil
	return closeFn()
}

// RegisterHTTPHandler mounts handler on an HTTP server bound to port. Servers
// are started by Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() func() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	servers := make([]*http.Server, 0, len(s.httpServers))
	for port, mux := range s.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		servers = append(servers, srv)

		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("HTTP server failed", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}(srv)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(ctx)
		}
	}
}
