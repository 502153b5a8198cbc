// Package correlation models the attributes that tie a completion event back
// to the request that caused it.
package correlation

import (
	idspkg "github.com/drblury/vehicleflow/internal/runtime/ids"
	metadatapkg "github.com/drblury/vehicleflow/internal/runtime/metadata"
)

// Wire attribute keys. Values are always plain strings on the wire.
const (
	KeyEventID         = "eventId"
	KeyEventType       = "eventType"
	KeyResourceID      = "resourceId"
	KeySourceEventID   = "sourceEventId"
	KeySourceEventType = "sourceEventType"
)

const (
	requestedSuffix = "_requested"
	completedSuffix = "_completed"
)

// NewEventID generates identifiers for derived events.
var NewEventID = idspkg.CreateUUID

// Attributes is the correlation metadata of one event. EventID and EventType
// are always set (possibly empty when the producer omitted them); the pointer
// fields are nil when absent.
type Attributes struct {
	EventID         string
	EventType       string
	ResourceID      *string
	SourceEventID   *string
	SourceEventType *string
}

// FromWire reads attributes out of message metadata. Missing eventId or
// eventType read as the empty string.
func FromWire(md metadatapkg.Metadata) Attributes {
	return Attributes{
		EventID:         md[KeyEventID],
		EventType:       md[KeyEventType],
		ResourceID:      md.Optional(KeyResourceID),
		SourceEventID:   md.Optional(KeySourceEventID),
		SourceEventType: md.Optional(KeySourceEventType),
	}
}

// ToWire renders the attributes as message metadata. Absent optional
// attributes are omitted.
func (a Attributes) ToWire() metadatapkg.Metadata {
	md := metadatapkg.Metadata{
		KeyEventID:   a.EventID,
		KeyEventType: a.EventType,
	}
	md.SetOptional(KeyResourceID, a.ResourceID)
	md.SetOptional(KeySourceEventID, a.SourceEventID)
	md.SetOptional(KeySourceEventType, a.SourceEventType)
	return md
}

// Derive returns the attributes of a new event of eventType caused by parent.
// The parent is not modified.
func Derive(parent Attributes, eventType string, resourceID *string) Attributes {
	sourceID := parent.EventID
	sourceType := parent.EventType
	return Attributes{
		EventID:         NewEventID(),
		EventType:       eventType,
		ResourceID:      cloneOptional(resourceID),
		SourceEventID:   &sourceID,
		SourceEventType: &sourceType,
	}
}

// RequestedEventType names the request event of a domain, e.g.
// "insert_vehicle_requested".
func RequestedEventType(domain string) string {
	return domain + requestedSuffix
}

// CompletedEventType names the completion event of a domain, e.g.
// "insert_vehicle_completed".
func CompletedEventType(domain string) string {
	return domain + completedSuffix
}

// Deriver applies the completion rule for one pipeline domain.
type Deriver struct {
	Domain string
}

// DeriveCompletion derives the completion attributes for parent. Success and
// failure share this rule; failures pass a nil resourceID.
func (d Deriver) DeriveCompletion(parent Attributes, resourceID *string) Attributes {
	return Derive(parent, CompletedEventType(d.Domain), resourceID)
}

func cloneOptional(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
