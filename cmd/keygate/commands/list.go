package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/keygate/internal/config"
)

// NewListCommand enumerates every tracked application and its rotation
// status.
func NewListCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked apps and their rotation status",
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

			creds, err := mgr.List(ctx)
			if err != nil {
				return err
			}
			if len(creds) == 0 {
				fmt.Println("No apps found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "APP\tPERIOD (DAYS)\tLAST ROTATED\tNEXT ROTATION\tVERSION")
			for _, cred := range creds {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
					cred.AppName,
					cred.RotationPeriodDays,
					cred.LastRotated.Format(time.RFC3339),
					cred.NextRotation.Format(time.RFC3339),
					cred.Version,
				)
			}
			return w.Flush()
		},
	}
}
