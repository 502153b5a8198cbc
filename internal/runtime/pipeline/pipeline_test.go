package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/vehicleflow/internal/runtime/codec"
	"github.com/drblury/vehicleflow/internal/runtime/completion"
	"github.com/drblury/vehicleflow/internal/runtime/correlation"
	errspkg "github.com/drblury/vehicleflow/internal/runtime/errors"
	metadatapkg "github.com/drblury/vehicleflow/internal/runtime/metadata"
	"github.com/drblury/vehicleflow/internal/runtime/vehicle"
)

const testTopic = "vehicle-completions"

const validVehicleJSON = `{"make":"Ford","model":"F150","modelYear":"2019","vin":"1FTEW1E5","dln":"D1"}`

type recordingPublisher struct {
	mu       sync.Mutex
	messages []*message.Message
	topics   []string
	failFor  map[string]bool
}

func (r *recordingPublisher) Publish(topic string, messages ...*message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range messages {
		r.topics = append(r.topics, topic)
		r.messages = append(r.messages, msg)
		if r.failFor[msg.Metadata[correlation.KeySourceEventID]] {
			return errors.New("broker unavailable")
		}
	}
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

// bySource indexes published completions by their source event id.
func (r *recordingPublisher) bySource(t *testing.T) map[string]publishedCompletion {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]publishedCompletion, len(r.messages))
	for _, msg := range r.messages {
		env, err := completion.Decode(msg.Payload)
		require.NoError(t, err)
		attrs := correlation.FromWire(metadatapkg.FromWatermill(msg.Metadata))
		require.NotNil(t, attrs.SourceEventID)
		out[*attrs.SourceEventID] = publishedCompletion{attrs: attrs, envelope: env, uuid: msg.UUID}
	}
	return out
}

type publishedCompletion struct {
	attrs    correlation.Attributes
	envelope completion.Envelope
	uuid     string
}

type fakeStore struct {
	mu      sync.Mutex
	calls   [][]vehicle.Vehicle
	err     error
	dropIDs int
}

func (f *fakeStore) InsertVehicles(_ context.Context, vehicles []vehicle.Vehicle) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, vehicles)
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]string, 0, len(vehicles))
	for i := range vehicles[f.dropIDs:] {
		ids = append(ids, fmt.Sprintf("vehicle-%d", i))
	}
	return ids, nil
}

func record(eventID, payload string) Record {
	return Record{
		Payload: payload,
		Attributes: metadatapkg.New(
			correlation.KeyEventID, eventID,
			correlation.KeyEventType, "insert_vehicle_requested",
		),
	}
}

func validRecord(eventID string) Record {
	return record(eventID, codec.Encode([]byte(validVehicleJSON)))
}

func newTestProcessor(t *testing.T, opts Options, store Store, pub message.Publisher) *Processor {
	t.Helper()
	if opts.Topic == "" {
		opts.Topic = testTopic
	}
	p, err := NewProcessor(opts, store, pub, nil, nil)
	require.NoError(t, err)
	return p
}

func TestProcessBatchPublishesOneCompletionPerRecord(t *testing.T) {
	pub := &recordingPublisher{}
	store := &fakeStore{}
	p := newTestProcessor(t, Options{}, store, pub)

	records := []Record{
		validRecord("A"),
		record("B", "%%%%"),
		validRecord("C"),
		record("D", codec.Encode([]byte(`{"make":"Ford"}`))),
		record("E", codec.Encode([]byte{0xff, 0xfe})),
	}

	report, err := p.ProcessBatch(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, Report{Received: 5, Parsed: 2, Failed: 3, Persisted: 2, Published: 5}, report)

	require.Len(t, store.calls, 1)
	assert.Len(t, store.calls[0], 2)

	got := pub.bySource(t)
	require.Len(t, got, 5)
	for _, topic := range pub.topics {
		assert.Equal(t, testTopic, topic)
	}

	for _, id := range []string{"A", "C"} {
		c := got[id]
		assert.True(t, c.envelope.Success, id)
		require.NotNil(t, c.envelope.ID)
		require.NotNil(t, c.attrs.ResourceID)
		assert.Equal(t, *c.envelope.ID, *c.attrs.ResourceID)
		assert.Equal(t, []string{SuccessMessage}, c.envelope.Messages)
		assert.Nil(t, c.envelope.Payload)
	}

	expectedKinds := map[string]error{"B": errspkg.ErrDecode, "D": errspkg.ErrParse, "E": errspkg.ErrEncoding}
	for id, kind := range expectedKinds {
		c := got[id]
		assert.False(t, c.envelope.Success, id)
		assert.Nil(t, c.envelope.ID)
		assert.Nil(t, c.attrs.ResourceID)
		require.Len(t, c.envelope.Errors, 1)
		assert.Contains(t, c.envelope.Errors[0], kind.Error())
	}

	for id, c := range got {
		assert.Equal(t, "insert_vehicle_completed", c.attrs.EventType)
		require.NotNil(t, c.attrs.SourceEventType)
		assert.Equal(t, "insert_vehicle_requested", *c.attrs.SourceEventType)
		assert.NotEqual(t, id, c.attrs.EventID)
		assert.NotEmpty(t, c.uuid)
	}
}

func TestProcessBatchPublishFailureDoesNotBlockOthers(t *testing.T) {
	pub := &recordingPublisher{failFor: map[string]bool{"B": true}}
	p := newTestProcessor(t, Options{Concurrency: 1}, &fakeStore{}, pub)

	report, err := p.ProcessBatch(context.Background(), []Record{validRecord("A"), validRecord("B"), validRecord("C")})
	require.NoError(t, err)

	assert.Len(t, pub.messages, 3)
	assert.Equal(t, 2, report.Published)
	assert.Equal(t, 1, report.PublishFailures)
}

func TestProcessBatchPersistenceFailureFailsEveryParsedRecord(t *testing.T) {
	pub := &recordingPublisher{}
	store := &fakeStore{err: errors.New("connection refused")}
	p := newTestProcessor(t, Options{}, store, pub)

	report, err := p.ProcessBatch(context.Background(), []Record{validRecord("A"), validRecord("B"), record("C", "%%%%")})
	require.NoError(t, err)
	assert.Equal(t, Report{Received: 3, Parsed: 2, Failed: 3, Published: 3}, report)

	got := pub.bySource(t)
	for _, id := range []string{"A", "B"} {
		c := got[id]
		assert.False(t, c.envelope.Success)
		require.Len(t, c.envelope.Errors, 1)
		assert.Contains(t, c.envelope.Errors[0], "persistence error")
		assert.Contains(t, c.envelope.Errors[0], "connection refused")
		assert.Nil(t, c.attrs.ResourceID)
	}
	assert.Contains(t, got["C"].envelope.Errors[0], "decode error")
}

func TestProcessBatchRejectsShortIDList(t *testing.T) {
	pub := &recordingPublisher{}
	p := newTestProcessor(t, Options{}, &fakeStore{dropIDs: 1}, pub)

	report, err := p.ProcessBatch(context.Background(), []Record{validRecord("A"), validRecord("B")})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	assert.Zero(t, report.Persisted)

	for _, c := range pub.bySource(t) {
		assert.False(t, c.envelope.Success)
		assert.Contains(t, c.envelope.Errors[0], "store returned 1 ids for 2 vehicles")
	}
}

func TestProcessBatchEchoesPayload(t *testing.T) {
	pub := &recordingPublisher{}
	p := newTestProcessor(t, Options{EchoPayload: true}, &fakeStore{}, pub)

	legacy := `{"make":"Ford","model":"F150","model_year":"2019","vin":"1FTEW1E5","dln":"D1","color":"red"}`
	_, err := p.ProcessBatch(context.Background(), []Record{record("A", codec.Encode([]byte(legacy)))})
	require.NoError(t, err)

	c := pub.bySource(t)["A"]
	require.NotNil(t, c.envelope.Payload)
	assert.Equal(t, validVehicleJSON, *c.envelope.Payload)
}

func TestProcessBatchEmptyBatch(t *testing.T) {
	pub := &recordingPublisher{}
	store := &fakeStore{}
	p := newTestProcessor(t, Options{}, store, pub)

	report, err := p.ProcessBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.Empty(t, store.calls)
	assert.Empty(t, pub.messages)
}

func TestProcessBatchAllRecordsInvalidSkipsStore(t *testing.T) {
	pub := &recordingPublisher{}
	store := &fakeStore{}
	p := newTestProcessor(t, Options{}, store, pub)

	report, err := p.ProcessBatch(context.Background(), []Record{record("A", "%%%%"), record("B", "")})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	assert.Empty(t, store.calls)
	assert.Len(t, pub.messages, 2)
}

func TestProcessBatchMissingAttributesUseDefaults(t *testing.T) {
	pub := &recordingPublisher{}
	p := newTestProcessor(t, Options{EventDomain: "register_vehicle"}, &fakeStore{}, pub)

	_, err := p.ProcessBatch(context.Background(), []Record{{Payload: codec.Encode([]byte(validVehicleJSON))}})
	require.NoError(t, err)

	got := pub.bySource(t)
	c, ok := got[""]
	require.True(t, ok)
	assert.Equal(t, "register_vehicle_completed", c.attrs.EventType)
	require.NotNil(t, c.attrs.SourceEventType)
	assert.Equal(t, "", *c.attrs.SourceEventType)
}

func TestProcessBatchRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	require.NoError(t, metrics.Register())
	require.NoError(t, metrics.Register())

	pub := &recordingPublisher{failFor: map[string]bool{"C": true}}
	p, err := NewProcessor(Options{Topic: testTopic}, &fakeStore{}, pub, nil, metrics)
	require.NoError(t, err)

	_, err = p.ProcessBatch(context.Background(), []Record{validRecord("A"), record("B", "%%%%"), validRecord("C")})
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.recordsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.recordsTotal.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.persistedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.completionsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.completionsTotal.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.publishFailures))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.batchDuration))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Register())
	m.recordParsed(true)
	m.recordPersisted(1)
	m.recordPublished(true)
	m.recordPublishFailure()
}

func TestNewProcessorRequiresCollaborators(t *testing.T) {
	pub := &recordingPublisher{}
	store := &fakeStore{}

	_, err := NewProcessor(Options{}, store, pub, nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrConfiguration)
	assert.ErrorIs(t, err, errspkg.ErrTopicRequired)

	_, err = NewProcessor(Options{Topic: testTopic}, nil, pub, nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrConfiguration)
	assert.ErrorIs(t, err, errspkg.ErrStoreRequired)

	_, err = NewProcessor(Options{Topic: testTopic}, store, nil, nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrConfiguration)
	assert.ErrorIs(t, err, errspkg.ErrPublisherRequired)

	p, err := NewProcessor(Options{Topic: testTopic}, store, pub, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultEventDomain, p.Options().EventDomain)
	assert.Equal(t, DefaultConcurrency, p.Options().Concurrency)
}

func TestNilProcessorReturnsConfigurationError(t *testing.T) {
	var p *Processor
	_, err := p.ProcessBatch(context.Background(), nil)
	assert.ErrorIs(t, err, errspkg.ErrConfiguration)
}

func TestPublishCompletionValidatesArguments(t *testing.T) {
	attrs := correlation.Attributes{EventID: "A", EventType: "t"}
	env := completion.Succeeded("id", nil)

	assert.ErrorIs(t, PublishCompletion(context.Background(), nil, testTopic, attrs, env), errspkg.ErrPublisherRequired)
	assert.ErrorIs(t, PublishCompletion(context.Background(), &recordingPublisher{}, "", attrs, env), errspkg.ErrTopicRequired)

	bad := completion.Envelope{ID: env.ID}
	assert.ErrorIs(t, PublishCompletion(context.Background(), &recordingPublisher{}, testTopic, attrs, bad), errspkg.ErrPublish)

	failing := &recordingPublisher{failFor: map[string]bool{"": true}}
	assert.ErrorIs(t, PublishCompletion(context.Background(), failing, testTopic, attrs, env), errspkg.ErrPublish)
}

func TestNewCompletionMessageCarriesAttributes(t *testing.T) {
	source := "S"
	attrs := correlation.Attributes{EventID: "A", EventType: "insert_vehicle_completed", SourceEventID: &source}
	msg, err := NewCompletionMessage(attrs, completion.Failed(errors.New("x")))
	require.NoError(t, err)

	assert.Equal(t, "A", msg.Metadata[correlation.KeyEventID])
	assert.Equal(t, "S", msg.Metadata[correlation.KeySourceEventID])
	_, hasResource := msg.Metadata[correlation.KeyResourceID]
	assert.False(t, hasResource)
	assert.JSONEq(t, `{"id":null,"success":false,"payload":null,"messages":[],"errors":["x"],"warnings":[]}`, string(msg.Payload))
}
