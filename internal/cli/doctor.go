package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/fiapx/fiapx-scene-service/internal/bootstrap"
	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("required tools are missing")

func newDoctorCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg, ffprobe and colmap can be found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			report := bootstrap.NewHealthChecker(*cfg).Check()

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TOOL\tBINARY\tSTATUS\tPATH")
				for _, t := range report.Tools {
					status := "ok"
					switch {
					case !t.Available && t.Required:
						status = "missing"
					case !t.Available:
						status = "missing (optional)"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.Binary, status, t.Path)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if !report.Healthy {
				return errUnhealthy
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
