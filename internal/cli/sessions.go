package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fiapx/fiapx-scene-service/internal/infra/sqlite"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions recorded by previous runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := sqlite.Open(cfg.RegistryPath)
			if err != nil {
				return fmt.Errorf("open registry: %w", err)
			}
			defer reg.Close()

			jobs, err := reg.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tSTATUS\tFRAMES\tPOSES\tPOINTS\tCREATED\tDETAIL")
			for _, j := range jobs {
				detail := j.Workspace
				if j.ErrorMessage != "" {
					detail = fmt.Sprintf("%s: %s", j.ErrorKind, j.ErrorMessage)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\t%s\n",
					orDash(j.SessionID), j.Status, j.FrameCount, orDash(string(j.PoseSource)),
					j.PointCount, j.CreatedAt.Local().Format(time.DateTime), detail)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum sessions to list")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
