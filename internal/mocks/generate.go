// Package mocks provides mock implementations of the coordinator's store ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in
// internal/core. The mocks are generated using go:generate directives.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockServiceStore(ctrl)
//	store.EXPECT().Ping(gomock.Any()).Return(errors.New("redis down"))
package mocks

// Generate mock for ServiceStore interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=service_store_mock.go github.com/target/graph-coordinator/internal/core ServiceStore

// Generate mock for JobStore interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_store_mock.go github.com/target/graph-coordinator/internal/core JobStore
