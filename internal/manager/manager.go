// Package manager orchestrates the credential lifecycle: provisioning,
// rotation, status, listing and verification, with per-application mutual
// exclusion around every read-modify-write.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/systmms/keygate/internal/credential"
	kgerrors "github.com/systmms/keygate/internal/errors"
	"github.com/systmms/keygate/internal/logging"
	"github.com/systmms/keygate/internal/metrics"
)

// Rotation period bounds, enforced before any state change.
const (
	MinPeriodDays = 1
	MaxPeriodDays = 365
)

// Scheduler is the slice of the rotation scheduler the manager drives.
type Scheduler interface {
	Schedule(app string, periodDays int)
}

// Options configure manager behavior per deployment mode.
type Options struct {
	// DefaultPeriodDays is the rotation period applied by lazy-init.
	DefaultPeriodDays int

	// LazyInit makes a status query for an unknown application provision it
	// with the default period instead of failing. Enabled in local mode only.
	LazyInit bool
}

// Verification is the read-only existence and freshness record returned by
// Verify. Absence is a normal result, never an error.
type Verification struct {
	Exists         bool       `json:"exists"`
	AppName        string     `json:"app_name,omitempty"`
	LastRotated    *time.Time `json:"last_rotated,omitempty"`
	NextRotation   *time.Time `json:"next_rotation,omitempty"`
	HasCredentials bool       `json:"has_credentials,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// Manager is the credential lifecycle orchestrator. All collaborators are
// injected at construction; there are no package-level singletons.
type Manager struct {
	store     *credential.Store
	generator credential.Generator
	scheduler Scheduler
	clock     clockwork.Clock
	logger    *logging.Logger
	opts      Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a manager over the given credential store and generator.
func New(store *credential.Store, generator credential.Generator, opts Options, clock clockwork.Clock, logger *logging.Logger) *Manager {
	if opts.DefaultPeriodDays == 0 {
		opts.DefaultPeriodDays = 30
	}
	return &Manager{
		store:     store,
		generator: generator,
		clock:     clock,
		logger:    logger,
		opts:      opts,
		locks:     make(map[string]*sync.Mutex),
	}
}

// SetScheduler attaches the rotation scheduler. Set after construction
// because the scheduler's fire callback points back at this manager.
func (m *Manager) SetScheduler(s Scheduler) {
	m.scheduler = s
}

// appLock returns the mutex serializing read-modify-write sequences for one
// application.
func (m *Manager) appLock(app string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, exists := m.locks[app]
	if !exists {
		lock = &sync.Mutex{}
		m.locks[app] = lock
	}
	return lock
}

// ValidatePeriod rejects rotation periods outside [1, 365] days.
func ValidatePeriod(periodDays int) error {
	if periodDays < MinPeriodDays || periodDays > MaxPeriodDays {
		return kgerrors.ValidationError{
			Field:   "rotation_period_days",
			Value:   periodDays,
			Message: fmt.Sprintf("must be between %d and %d", MinPeriodDays, MaxPeriodDays),
		}
	}
	return nil
}

// Create provisions an application with a fresh credential pair and arms its
// rotation schedule. Creating an existing application appends a new version
// (a deliberate reset) but never a second container, and preserves the
// original created_at.
func (m *Manager) Create(ctx context.Context, app string, periodDays int) (credential.AppCredential, error) {
	if err := ValidatePeriod(periodDays); err != nil {
		return credential.AppCredential{}, err
	}

	lock := m.appLock(app)
	lock.Lock()
	defer lock.Unlock()

	cred, err := m.create(ctx, app, periodDays)
	if err != nil {
		metrics.Create("error")
		return credential.AppCredential{}, err
	}

	metrics.Create("success")
	return cred, nil
}

// create is the provisioning path. Callers hold the app lock and have
// validated the period.
func (m *Manager) create(ctx context.Context, app string, periodDays int) (credential.AppCredential, error) {
	pair, err := m.generator.Generate(ctx, app)
	if err != nil {
		return credential.AppCredential{}, fmt.Errorf("generating credentials for app %s: %w", app, err)
	}

	now := m.clock.Now().UTC()
	createdAt := now
	if prev, _, err := m.store.GetLatest(ctx, app); err == nil {
		createdAt = prev.Metadata.CreatedAt
		m.logger.Info("resetting credentials for existing app %s", app)
	} else if !kgerrors.IsNotFound(err) {
		return credential.AppCredential{}, err
	}

	if err := m.store.EnsureContainer(ctx, app); err != nil {
		return credential.AppCredential{}, err
	}

	rec := credential.Record{
		Credentials: pair,
		Metadata: credential.Metadata{
			AppName:            app,
			CreatedAt:          createdAt,
			LastRotated:        now,
			NextRotation:       now.AddDate(0, 0, periodDays),
			RotationPeriodDays: periodDays,
		},
	}

	version, err := m.store.PutVersion(ctx, app, rec)
	if err != nil {
		return credential.AppCredential{}, err
	}

	if m.scheduler != nil {
		m.scheduler.Schedule(app, periodDays)
	}

	m.logger.Info("provisioned app %s with key %s (version %s)", app, logging.Secret(pair.Key), version)
	return rec.Credential(version), nil
}

// Rotate replaces the application's credential pair on demand. The stored
// rotation period and created_at are read first and carried forward; the
// period is never reset to a global default.
func (m *Manager) Rotate(ctx context.Context, app string) (credential.AppCredential, error) {
	return m.rotate(ctx, app, metrics.TriggerManual)
}

// RotateScheduled is the scheduler's fire callback.
func (m *Manager) RotateScheduled(ctx context.Context, app string) error {
	_, err := m.rotate(ctx, app, metrics.TriggerScheduled)
	return err
}

func (m *Manager) rotate(ctx context.Context, app string, trigger string) (credential.AppCredential, error) {
	lock := m.appLock(app)
	lock.Lock()
	defer lock.Unlock()

	prev, _, err := m.store.GetLatest(ctx, app)
	if err != nil {
		if kgerrors.IsNotFound(err) && m.opts.LazyInit {
			cred, createErr := m.create(ctx, app, m.opts.DefaultPeriodDays)
			if createErr != nil {
				metrics.Rotation(trigger, "error")
				return credential.AppCredential{}, createErr
			}
			metrics.Rotation(trigger, "success")
			return cred, nil
		}
		metrics.Rotation(trigger, "error")
		return credential.AppCredential{}, err
	}

	pair, err := m.generator.Generate(ctx, app)
	if err != nil {
		metrics.Rotation(trigger, "error")
		return credential.AppCredential{}, fmt.Errorf("generating credentials for app %s: %w", app, err)
	}

	now := m.clock.Now().UTC()
	rec := credential.Record{
		Credentials: pair,
		Metadata: credential.Metadata{
			AppName:            app,
			CreatedAt:          prev.Metadata.CreatedAt,
			LastRotated:        now,
			NextRotation:       now.AddDate(0, 0, prev.Metadata.RotationPeriodDays),
			RotationPeriodDays: prev.Metadata.RotationPeriodDays,
		},
	}

	version, err := m.store.PutVersion(ctx, app, rec)
	if err != nil {
		metrics.Rotation(trigger, "error")
		return credential.AppCredential{}, err
	}

	metrics.Rotation(trigger, "success")
	m.logger.Info("rotated credentials for app %s (version %s)", app, version)
	return rec.Credential(version), nil
}

// GetStatus returns the Active version's credential. In lazy-init mode an
// unknown application is provisioned with the default period instead of
// failing; this is a documented contract of local deployments, not a cache
// side effect.
func (m *Manager) GetStatus(ctx context.Context, app string) (credential.AppCredential, error) {
	rec, version, err := m.store.GetLatest(ctx, app)
	if err == nil {
		return rec.Credential(version), nil
	}
	if !kgerrors.IsNotFound(err) || !m.opts.LazyInit {
		return credential.AppCredential{}, err
	}

	lock := m.appLock(app)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock: a concurrent request may have initialized it.
	if rec, version, err := m.store.GetLatest(ctx, app); err == nil {
		return rec.Credential(version), nil
	} else if !kgerrors.IsNotFound(err) {
		return credential.AppCredential{}, err
	}

	m.logger.Info("lazily initializing app %s with default period %d day(s)", app, m.opts.DefaultPeriodDays)
	return m.create(ctx, app, m.opts.DefaultPeriodDays)
}

// List enumerates every tracked application's Active credential. Per-entry
// read failures are skipped inside the credential store.
func (m *Manager) List(ctx context.Context) ([]credential.AppCredential, error) {
	return m.store.List(ctx)
}

// Verify is a read-only existence and freshness check. It never mutates
// state; absence and backend failures both produce a non-exceptional record.
func (m *Manager) Verify(ctx context.Context, app string) Verification {
	rec, _, err := m.store.GetLatest(ctx, app)
	if err != nil {
		v := Verification{Exists: false}
		if !kgerrors.IsNotFound(err) {
			m.logger.Error("verification failed for app %s: %v", app, err)
			v.Error = err.Error()
		}
		return v
	}

	lastRotated := rec.Metadata.LastRotated
	nextRotation := rec.Metadata.NextRotation
	return Verification{
		Exists:         true,
		AppName:        app,
		LastRotated:    &lastRotated,
		NextRotation:   &nextRotation,
		HasCredentials: rec.Credentials.Key != "" && rec.Credentials.Secret != "",
	}
}

// History exposes the version audit trail for operator tooling.
func (m *Manager) History(ctx context.Context, app string) ([]HistoryEntry, error) {
	versions, err := m.store.History(ctx, app)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, HistoryEntry{
			Version:    v.Ordinal,
			State:      v.State,
			CreateTime: v.CreateTime,
		})
	}
	return entries, nil
}

// HistoryEntry is one version in an application's audit trail.
type HistoryEntry struct {
	Version    string    `json:"version"`
	State      string    `json:"state"`
	CreateTime time.Time `json:"create_time"`
}
