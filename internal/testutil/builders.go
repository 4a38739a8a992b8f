package testutil

import (
	"time"

	"github.com/target/graph-coordinator/internal/domain/model"
)

// RegisterRequestBuilder helps build RegisterServiceRequest objects for testing.
type RegisterRequestBuilder struct {
	req *model.RegisterServiceRequest
}

// NewRegisterRequest creates a builder with a valid endpoint and a 30s TTL.
func NewRegisterRequest(graphID, serviceName string) *RegisterRequestBuilder {
	return &RegisterRequestBuilder{
		req: &model.RegisterServiceRequest{
			Key:      model.ServiceKey{GraphID: graphID, ServiceName: serviceName},
			Endpoint: "127.0.0.1:8182",
			TTL:      30 * time.Second,
		},
	}
}

// WithEndpoint sets the endpoint.
func (b *RegisterRequestBuilder) WithEndpoint(endpoint string) *RegisterRequestBuilder {
	b.req.Endpoint = endpoint
	return b
}

// WithTTL sets the time-to-live.
func (b *RegisterRequestBuilder) WithTTL(ttl time.Duration) *RegisterRequestBuilder {
	b.req.TTL = ttl
	return b
}

// WithMetadata sets a metadata entry.
func (b *RegisterRequestBuilder) WithMetadata(key, value string) *RegisterRequestBuilder {
	if b.req.Metadata == nil {
		b.req.Metadata = make(map[string]string)
	}
	b.req.Metadata[key] = value
	return b
}

// Build returns the built request.
func (b *RegisterRequestBuilder) Build() model.RegisterServiceRequest {
	return *b.req
}

// SubmitJobRequest returns a submit request with a kind label.
func SubmitJobRequest(kind string) model.SubmitJobRequest {
	return model.SubmitJobRequest{Kind: kind}
}
