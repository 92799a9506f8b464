package commands

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/systmms/keygate/internal/config"
	"github.com/systmms/keygate/internal/credential"
	"github.com/systmms/keygate/internal/manager"
	"github.com/systmms/keygate/internal/store"
)

// buildBackend constructs the storage backend selected by the deployment
// mode. Durable backends are wrapped with the configured retry policy.
func buildBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	def := cfg.Definition

	switch def.Mode {
	case config.ModeDurable:
		gcp, err := store.NewGCP(ctx, store.GCPConfig{
			ProjectID:             def.ProjectID,
			ServiceAccountKeyPath: def.ServiceAccountKey,
		}, cfg.Logger)
		if err != nil {
			return nil, err
		}
		policy := store.RetryPolicy{
			MaxAttempts: def.Retry.MaxAttempts,
			Backoff:     def.Retry.Backoff(),
			Multiplier:  def.Retry.BackoffMultiplier,
		}
		return store.WithRetry(gcp, policy, cfg.Logger), nil

	case config.ModeLocal:
		return store.NewMemory(), nil

	default:
		return nil, fmt.Errorf("unknown mode: %s", def.Mode)
	}
}

// buildManager wires the credential store, generator and manager for the
// configured mode.
func buildManager(ctx context.Context, cfg *config.Config) (*manager.Manager, error) {
	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	credStore := credential.NewStore(backend, cfg.Logger)
	mgr := manager.New(credStore, credential.NewUUIDGenerator(), manager.Options{
		DefaultPeriodDays: cfg.Definition.DefaultPeriodDays,
		LazyInit:          cfg.Definition.Mode == config.ModeLocal,
	}, clockwork.NewRealClock(), cfg.Logger)

	return mgr, nil
}

// requireDurable rejects commands that inspect the shared backend when the
// configuration points at the in-process store, which has no cross-process
// visibility.
func requireDurable(cfg *config.Config) error {
	if cfg.Definition.Mode != config.ModeDurable {
		return fmt.Errorf("this command requires durable mode; local mode has no shared state to inspect")
	}
	return nil
}
