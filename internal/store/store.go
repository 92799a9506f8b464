// Package store defines the versioned, labeled container store capability
// that backs the credential lifecycle, with a durable Google Cloud Secret
// Manager implementation and a volatile in-process one behind the same
// interface.
package store

import (
	"context"
	"time"
)

// Container is one logical named record set grouping all versions for an
// application.
type Container struct {
	Name   string
	Labels map[string]string
}

// VersionInfo describes one immutable version of a container, newest last.
type VersionInfo struct {
	Ordinal    string
	State      string
	CreateTime time.Time
}

// Backend is the storage capability consumed by the credential store.
//
// Implementations must be safe for concurrent use. Error contract:
//   - EnsureContainer returns errors.AlreadyExistsError when the container
//     was provisioned by a prior run; callers treat that as success.
//   - ReadLatest returns errors.NotFoundError when no container or version
//     exists for the name.
//   - Transient backend failures surface as errors.TransientError and
//     authorization failures as errors.PermissionError; everything else is
//     wrapped with operation context.
type Backend interface {
	// EnsureContainer provisions the named container with the given labels.
	EnsureContainer(ctx context.Context, name string, labels map[string]string) error

	// AppendVersion adds a new version holding payload and returns its
	// ordinal. Prior versions are never overwritten.
	AppendVersion(ctx context.Context, name string, payload []byte) (string, error)

	// ReadLatest returns the payload and ordinal of the highest-ordinal
	// (Active) version.
	ReadLatest(ctx context.Context, name string) ([]byte, string, error)

	// ListContainers enumerates containers matching the label filter
	// (backend query syntax, e.g. "labels.type=gateway-key"; empty matches
	// everything).
	ListContainers(ctx context.Context, labelFilter string) ([]Container, error)
}

// VersionLister is implemented by backends that can enumerate the full
// version history of a container. Used by the operator verify tooling.
type VersionLister interface {
	ListVersions(ctx context.Context, name string) ([]VersionInfo, error)
}
