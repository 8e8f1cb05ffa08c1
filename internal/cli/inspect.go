package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/fiapx/fiapx-scene-service/internal/scene"
	"github.com/fiapx/fiapx-scene-service/internal/workspace"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var preview int

	cmd := &cobra.Command{
		Use:   "inspect <workspace>",
		Short: "Summarise the artifacts of a session workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := workspace.Open(args[0])
			out := cmd.OutOrStdout()

			sess, err := ws.ReadManifest()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "session   %s\n", sess.ID)
			fmt.Fprintf(out, "video     %s\n", sess.VideoSource)
			fmt.Fprintf(out, "created   %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Fprintf(out, "options   fps=%g max_dimension=%d reconstruct=%t points=%d\n",
				sess.Options.FPS, sess.Options.MaxDimension, sess.Options.Reconstruct, sess.Options.PointCount)

			frames, err := ws.Frames()
			if err != nil {
				return fmt.Errorf("frames: %w", err)
			}
			fmt.Fprintf(out, "frames    %d\n", frames.Len())

			poses, err := ws.ReadPoseSet()
			switch {
			case errors.Is(err, fs.ErrNotExist):
				fmt.Fprintln(out, "poses     none")
			case err != nil:
				return fmt.Errorf("poses: %w", err)
			default:
				in := poses.Intrinsics
				fmt.Fprintf(out, "poses     %d\n", len(poses.Poses))
				fmt.Fprintf(out, "camera    %s %dx%d fx=%g fy=%g cx=%g cy=%g\n",
					in.Model, in.Width, in.Height, in.FX, in.FY, in.CX, in.CY)
			}

			points, err := ws.ReadPointCloud()
			switch {
			case errors.Is(err, fs.ErrNotExist):
				fmt.Fprintln(out, "points    none")
				return nil
			case err != nil:
				return fmt.Errorf("point cloud: %w", err)
			}
			fmt.Fprintf(out, "points    %d\n", len(points))
			for _, p := range scene.Downsample(points, preview, 1) {
				fmt.Fprintf(out, "  % .4f % .4f % .4f  #%02x%02x%02x\n",
					p.Position[0], p.Position[1], p.Position[2], p.Color[0], p.Color[1], p.Color[2])
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&preview, "preview", 5, "number of sample points to print")
	return cmd
}
