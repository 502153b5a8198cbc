package vehicleflow

import (
	runtimepkg "github.com/drblury/vehicleflow/internal/runtime"
	"github.com/drblury/vehicleflow/internal/runtime/codec"
	"github.com/drblury/vehicleflow/internal/runtime/completion"
	configpkg "github.com/drblury/vehicleflow/internal/runtime/config"
	"github.com/drblury/vehicleflow/internal/runtime/correlation"
	errspkg "github.com/drblury/vehicleflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/vehicleflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/vehicleflow/internal/runtime/metadata"
	"github.com/drblury/vehicleflow/internal/runtime/pipeline"
	storepkg "github.com/drblury/vehicleflow/internal/runtime/store"
	transportpkg "github.com/drblury/vehicleflow/internal/runtime/transport"
	"github.com/drblury/vehicleflow/internal/runtime/vehicle"
	pubsub "github.com/drblury/vehicleflow/transport"
)

type (
	Config                 = configpkg.Config
	Service                = runtimepkg.Service
	ServiceDependencies    = runtimepkg.ServiceDependencies
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder

	Record     = pipeline.Record
	Report     = pipeline.Report
	Processor  = pipeline.Processor
	Options    = pipeline.Options
	Metrics    = pipeline.Metrics
	Vehicle    = vehicle.Vehicle
	Completion = completion.Envelope
	Attributes = correlation.Attributes
	Metadata   = metadatapkg.Metadata

	Store       = storepkg.Store
	StoreConfig = storepkg.Config

	Transport          = transportpkg.Transport
	TransportFactory   = transportpkg.Factory
	TransportFactoryFn = transportpkg.FactoryFunc
	TransportBuilder   = pubsub.Builder
	TransportConfig    = pubsub.Config
	Capabilities       = pubsub.Capabilities

	ServiceLogger = loggingpkg.ServiceLogger
	LogFields     = loggingpkg.LogFields

	Error                 = errspkg.Error
	ConfigValidationError = errspkg.ConfigValidationError
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	NewProcessor   = pipeline.NewProcessor
	NewMetrics     = pipeline.NewMetrics
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	RecordsFromSNSEvent = runtimepkg.RecordsFromSNSEvent

	DefaultMiddlewares    = runtimepkg.DefaultMiddlewares
	LogMessagesMiddleware = runtimepkg.LogMessagesMiddleware
	TracerMiddleware      = runtimepkg.TracerMiddleware
	MetricsMiddleware     = runtimepkg.MetricsMiddleware
	RecovererMiddleware   = runtimepkg.RecovererMiddleware

	OpenStore      = storepkg.Open
	MigrateStore   = storepkg.Migrate
	NewMemoryStore = storepkg.NewMemory

	DefaultTransportFactory  = transportpkg.DefaultFactory
	DefaultTransportRegistry = pubsub.DefaultRegistry
	RegisterTransport        = pubsub.Register
	GetCapabilities          = pubsub.GetCapabilities

	EncodePayload      = codec.Encode
	DecodePayload      = codec.DecodeText
	ParseVehicle       = vehicle.Parse
	DecodeCompletion   = completion.Decode
	FromWire           = correlation.FromWire
	DeriveAttributes   = correlation.Derive
	CompletedEventType = correlation.CompletedEventType
	RequestedEventType = correlation.RequestedEventType

	NewLogger            = loggingpkg.NewLogger
	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewMetadata          = metadatapkg.New

	ErrDecode            = errspkg.ErrDecode
	ErrEncoding          = errspkg.ErrEncoding
	ErrParse             = errspkg.ErrParse
	ErrPersistence       = errspkg.ErrPersistence
	ErrPublish           = errspkg.ErrPublish
	ErrConfiguration     = errspkg.ErrConfiguration
	ErrServiceRequired   = errspkg.ErrServiceRequired
	ErrPublisherRequired = errspkg.ErrPublisherRequired
	ErrStoreRequired     = errspkg.ErrStoreRequired
	ErrTopicRequired     = errspkg.ErrTopicRequired
	ErrLoggerRequired    = errspkg.ErrLoggerRequired
)

// Metadata keys carried by requests and completions.
const (
	MetadataKeyEventID         = correlation.KeyEventID
	MetadataKeyEventType       = correlation.KeyEventType
	MetadataKeyResourceID      = correlation.KeyResourceID
	MetadataKeySourceEventID   = correlation.KeySourceEventID
	MetadataKeySourceEventType = correlation.KeySourceEventType
)
