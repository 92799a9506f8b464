package store

import (
	"context"
	"time"

	kgerrors "github.com/systmms/keygate/internal/errors"
	"github.com/systmms/keygate/internal/logging"
	"github.com/systmms/keygate/internal/metrics"
)

// RetryPolicy bounds how transient backend failures are retried. NotFound,
// AlreadyExists and PermissionError are control-flow signals and are never
// retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
		Multiplier:  2.0,
	}
}

// Retrying decorates a Backend with bounded exponential backoff.
type Retrying struct {
	backend Backend
	policy  RetryPolicy
	logger  *logging.Logger
}

// WithRetry wraps backend with the given policy.
func WithRetry(backend Backend, policy RetryPolicy, logger *logging.Logger) *Retrying {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 2.0
	}
	if policy.Backoff <= 0 {
		policy.Backoff = 500 * time.Millisecond
	}
	return &Retrying{backend: backend, policy: policy, logger: logger}
}

func (r *Retrying) EnsureContainer(ctx context.Context, name string, labels map[string]string) error {
	return r.do(ctx, "ensure_container", func() error {
		return r.backend.EnsureContainer(ctx, name, labels)
	})
}

func (r *Retrying) AppendVersion(ctx context.Context, name string, payload []byte) (string, error) {
	var version string
	err := r.do(ctx, "append_version", func() error {
		var innerErr error
		version, innerErr = r.backend.AppendVersion(ctx, name, payload)
		return innerErr
	})
	return version, err
}

func (r *Retrying) ReadLatest(ctx context.Context, name string) ([]byte, string, error) {
	var (
		payload []byte
		ordinal string
	)
	err := r.do(ctx, "read_latest", func() error {
		var innerErr error
		payload, ordinal, innerErr = r.backend.ReadLatest(ctx, name)
		return innerErr
	})
	return payload, ordinal, err
}

func (r *Retrying) ListContainers(ctx context.Context, labelFilter string) ([]Container, error) {
	var containers []Container
	err := r.do(ctx, "list_containers", func() error {
		var innerErr error
		containers, innerErr = r.backend.ListContainers(ctx, labelFilter)
		return innerErr
	})
	return containers, err
}

// ListVersions delegates when the wrapped backend supports history listing.
func (r *Retrying) ListVersions(ctx context.Context, name string) ([]VersionInfo, error) {
	lister, ok := r.backend.(VersionLister)
	if !ok {
		return nil, kgerrors.NotFoundError{Name: name}
	}

	var versions []VersionInfo
	err := r.do(ctx, "list_versions", func() error {
		var innerErr error
		versions, innerErr = lister.ListVersions(ctx, name)
		return innerErr
	})
	return versions, err
}

// do runs op, retrying only transient failures up to the attempt budget,
// sleeping with exponential backoff between attempts.
func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	backoff := r.policy.Backoff
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !kgerrors.IsTransient(lastErr) {
			return lastErr
		}

		if attempt == r.policy.MaxAttempts {
			break
		}

		metrics.StoreRetry(op)
		r.logger.Warn("%s failed transiently (attempt %d/%d), retrying in %s: %v",
			op, attempt, r.policy.MaxAttempts, backoff, lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * r.policy.Multiplier)
		}
	}

	return lastErr
}
