package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/keygate/internal/config"
	"github.com/systmms/keygate/internal/manager"
)

// NewVerifyCommand checks credential existence and freshness directly
// against the durable backend, including the per-version audit trail.
func NewVerifyCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [app]",
		Short: "Verify stored credentials for one app, or all apps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			if err := requireDurable(cfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			mgr, err := buildManager(ctx, cfg)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				return verifyApp(ctx, mgr, args[0])
			}
			return verifyAll(ctx, mgr)
		},
	}
}

func verifyApp(ctx context.Context, mgr *manager.Manager, app string) error {
	v := mgr.Verify(ctx, app)
	if !v.Exists {
		if v.Error != "" {
			return fmt.Errorf("verification failed for %s: %s", app, v.Error)
		}
		fmt.Printf("%s: no credential found\n", app)
		return nil
	}

	fmt.Printf("App: %s\n", app)
	fmt.Printf("Last rotated:  %s\n", v.LastRotated.Format(time.RFC3339))
	fmt.Printf("Next rotation: %s\n", v.NextRotation.Format(time.RFC3339))
	fmt.Printf("Has credentials: %v\n", v.HasCredentials)

	history, err := mgr.History(ctx, app)
	if err != nil {
		return err
	}
	if len(history) > 0 {
		fmt.Println("\nVersions:")
		for _, entry := range history {
			fmt.Printf("  %s  %s  %s\n", entry.Version, entry.State, entry.CreateTime.Format(time.RFC3339))
		}
	}
	return nil
}

func verifyAll(ctx context.Context, mgr *manager.Manager) error {
	creds, err := mgr.List(ctx)
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		fmt.Println("No apps found")
		return nil
	}

	for _, cred := range creds {
		if err := verifyApp(ctx, mgr, cred.AppName); err != nil {
			fmt.Printf("%s: %v\n", cred.AppName, err)
		}
		fmt.Println()
	}
	return nil
}
