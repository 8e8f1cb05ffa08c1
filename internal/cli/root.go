// Package cli implements scenectl, the operator command line for running and
// inspecting scene sessions on the local machine.
package cli

import (
	"fmt"

	"github.com/fiapx/fiapx-scene-service/internal/infra/config"
	"github.com/fiapx/fiapx-scene-service/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenectl",
		Short: "Turn a video into frames, camera poses and an initial point cloud",
		Long: `scenectl runs the scene preprocessing pipeline against a local video file.

Each run creates a session workspace holding the extracted frames, a COLMAP text
model and a points3D.ply seed cloud. Sessions are recorded in a local registry.
Configuration comes from the environment (and a .env file if present); flags
override it per run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("registry", "", "session registry database (default $SCENECTL_REGISTRY)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newSimulateCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newInspectCmd())

	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.PipelineConfig, error) {
	cfg, err := config.LoadPipeline()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if registry, _ := cmd.Flags().GetString("registry"); registry != "" {
		cfg.RegistryPath = registry
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.NewConsole(level)
}
