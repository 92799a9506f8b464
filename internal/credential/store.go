package credential

import (
	"context"
	"encoding/json"
	"fmt"

	kgerrors "github.com/systmms/keygate/internal/errors"
	"github.com/systmms/keygate/internal/logging"
	"github.com/systmms/keygate/internal/store"
)

// Store wraps a storage backend with the domain's versioning and
// serialization contract. It owns the durable representation exclusively.
type Store struct {
	backend store.Backend
	logger  *logging.Logger
}

// NewStore creates a credential store over the given backend.
func NewStore(backend store.Backend, logger *logging.Logger) *Store {
	return &Store{backend: backend, logger: logger}
}

// EnsureContainer provisions the application's container. Idempotent: a
// container provisioned by a prior run is a success, not an error.
func (s *Store) EnsureContainer(ctx context.Context, app string) error {
	err := s.backend.EnsureContainer(ctx, ContainerName(app), Labels(app))
	if err != nil {
		if kgerrors.IsAlreadyExists(err) {
			s.logger.Debug("container already exists for app %s", app)
			return nil
		}
		return fmt.Errorf("ensuring container for app %s: %w", app, err)
	}

	s.logger.Info("created container for app %s", app)
	return nil
}

// PutVersion appends a new version holding the serialized record and returns
// the assigned version ordinal. Prior versions are retained untouched.
func (s *Store) PutVersion(ctx context.Context, app string, rec Record) (string, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("serializing record for app %s: %w", app, err)
	}

	version, err := s.backend.AppendVersion(ctx, ContainerName(app), payload)
	if err != nil {
		return "", mapNotFound(err, app)
	}

	s.logger.Debug("stored version %s for app %s", version, app)
	return version, nil
}

// GetLatest returns the Active version's record and its ordinal.
func (s *Store) GetLatest(ctx context.Context, app string) (Record, string, error) {
	payload, version, err := s.backend.ReadLatest(ctx, ContainerName(app))
	if err != nil {
		return Record{}, "", mapNotFound(err, app)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, "", fmt.Errorf("parsing stored record for app %s: %w", app, err)
	}

	return rec, version, nil
}

// List resolves every keygate container to its Active credential. A failure
// reading one entry is logged and skipped; it never aborts the rest.
func (s *Store) List(ctx context.Context) ([]AppCredential, error) {
	containers, err := s.backend.ListContainers(ctx, LabelFilter)
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	credentials := make([]AppCredential, 0, len(containers))
	for _, c := range containers {
		app := c.Labels["app"]
		if app == "" {
			app = AppFromContainer(c.Name)
		}

		rec, version, err := s.GetLatest(ctx, app)
		if err != nil {
			s.logger.Error("skipping app %s while listing: %v", app, err)
			continue
		}
		credentials = append(credentials, rec.Credential(version))
	}

	return credentials, nil
}

// History returns the container's version history when the backend supports
// it, oldest first.
func (s *Store) History(ctx context.Context, app string) ([]store.VersionInfo, error) {
	lister, ok := s.backend.(store.VersionLister)
	if !ok {
		return nil, nil
	}

	versions, err := lister.ListVersions(ctx, ContainerName(app))
	if err != nil {
		return nil, mapNotFound(err, app)
	}
	return versions, nil
}

// mapNotFound rewrites a backend NotFound (container name) into a domain
// NotFound (app name) so no container naming leaks to callers.
func mapNotFound(err error, app string) error {
	if kgerrors.IsNotFound(err) {
		return kgerrors.NotFoundError{Name: app}
	}
	return err
}
