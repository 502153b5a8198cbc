package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// Metadata is the flat string attribute map carried alongside a message. It is
// the wire form of correlation attributes on every transport.
type Metadata map[string]string

// Clone returns a shallow copy of the metadata map. The result is never nil.
func (m Metadata) Clone() Metadata {
	cloned := make(Metadata, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	cloned[key] = value
	return cloned
}

// Lookup returns the value stored under key and whether it was present.
func (m Metadata) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Optional returns a pointer to the value stored under key, or nil when the
// key is absent. An empty value is still a present value.
func (m Metadata) Optional(key string) *string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	return &v
}

// SetOptional stores *value under key when value is non-nil and leaves the
// map untouched otherwise.
func (m Metadata) SetOptional(key string, value *string) {
	if value != nil {
		m[key] = *value
	}
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// FromWatermill copies Watermill message metadata.
func FromWatermill(md message.Metadata) Metadata {
	return Metadata(md).Clone()
}

// ToWatermill copies metadata into a Watermill map.
func ToWatermill(md Metadata) message.Metadata {
	return message.Metadata(md.Clone())
}
