package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
	"unicode"
)

// MaxServiceKeyPartLength bounds each half of a ServiceKey.
const MaxServiceKeyPartLength = 128

// ServiceKey identifies one registered service: a named endpoint belonging to a graph instance.
type ServiceKey struct {
	GraphID     string `json:"graph_id"`
	ServiceName string `json:"service_name"`
}

// String renders the key as "graph_id/service_name". Validated keys never contain '/',
// so the rendering is unambiguous.
func (k ServiceKey) String() string {
	return k.GraphID + "/" + k.ServiceName
}

// Validate checks both key parts are non-empty, bounded, and free of '/' and whitespace.
func (k ServiceKey) Validate() error {
	if err := validateKeyPart("graph_id", k.GraphID); err != nil {
		return err
	}
	return validateKeyPart("service_name", k.ServiceName)
}

// KeyPartError reports which key part failed validation.
type KeyPartError struct {
	Field  string
	Reason string
}

func (e *KeyPartError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func validateKeyPart(field, v string) error {
	if v == "" {
		return &KeyPartError{Field: field, Reason: "is required"}
	}
	if len(v) > MaxServiceKeyPartLength {
		return &KeyPartError{Field: field, Reason: fmt.Sprintf("must be at most %d bytes", MaxServiceKeyPartLength)}
	}
	if strings.Contains(v, "/") {
		return &KeyPartError{Field: field, Reason: "must not contain '/'"}
	}
	if strings.IndexFunc(v, unicode.IsSpace) >= 0 {
		return &KeyPartError{Field: field, Reason: "must not contain whitespace"}
	}
	return nil
}

// ServiceRecord is a registry entry for a live service. It stays visible until ExpiresAt
// unless renewed by a re-registration or heartbeat.
//
//nolint:recvcheck // MarshalJSON uses a value receiver so both values and pointers encode flat
type ServiceRecord struct {
	Key          ServiceKey        `json:"-"`
	Endpoint     string            `json:"endpoint"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

// serviceRecordJSON flattens the key into the top-level object for the wire format.
type serviceRecordJSON struct {
	GraphID      string            `json:"graph_id"`
	ServiceName  string            `json:"service_name"`
	Endpoint     string            `json:"endpoint"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

// MarshalJSON implements json.Marshaler.
func (r ServiceRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(serviceRecordJSON{
		GraphID:      r.Key.GraphID,
		ServiceName:  r.Key.ServiceName,
		Endpoint:     r.Endpoint,
		Metadata:     r.Metadata,
		RegisteredAt: r.RegisteredAt,
		ExpiresAt:    r.ExpiresAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ServiceRecord) UnmarshalJSON(data []byte) error {
	var raw serviceRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ServiceRecord{
		Key:          ServiceKey{GraphID: raw.GraphID, ServiceName: raw.ServiceName},
		Endpoint:     raw.Endpoint,
		Metadata:     raw.Metadata,
		RegisteredAt: raw.RegisteredAt,
		ExpiresAt:    raw.ExpiresAt,
	}
	return nil
}

// ToMap renders the record as a generic document; used as the JMESPath query input.
func (r *ServiceRecord) ToMap() map[string]any {
	meta := make(map[string]any, len(r.Metadata))
	for k, v := range r.Metadata {
		meta[k] = v
	}
	return map[string]any{
		"graph_id":      r.Key.GraphID,
		"service_name":  r.Key.ServiceName,
		"endpoint":      r.Endpoint,
		"metadata":      meta,
		"registered_at": r.RegisteredAt.UTC().Format(time.RFC3339Nano),
		"expires_at":    r.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
}

// Expired reports whether the record is no longer live at now.
// A record whose deadline equals now is expired.
func (r *ServiceRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Clone returns a deep copy of the record.
func (r *ServiceRecord) Clone() *ServiceRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Metadata = maps.Clone(r.Metadata)
	return &cp
}

// RegisterServiceRequest represents a request to create or refresh a registry entry.
type RegisterServiceRequest struct {
	Key      ServiceKey
	Endpoint string
	Metadata map[string]string
	TTL      time.Duration
}

// Validate validates the RegisterServiceRequest fields.
func (r *RegisterServiceRequest) Validate() error {
	if err := r.Key.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Endpoint) == "" {
		return &KeyPartError{Field: "endpoint", Reason: "is required"}
	}
	if r.TTL <= 0 {
		return &KeyPartError{Field: "ttl", Reason: "must be positive"}
	}
	return nil
}

// ServiceListFilter narrows a registry listing.
type ServiceListFilter struct {
	// GraphID restricts the listing to one graph instance when non-empty.
	GraphID string
	// Query is an optional JMESPath expression evaluated against each record; records
	// for which it yields a truthy value are kept.
	Query string
}
