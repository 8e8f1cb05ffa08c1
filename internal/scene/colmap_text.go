package scene

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCameras writes a COLMAP cameras.txt holding the single shared camera.
func WriteCameras(w io.Writer, c entity.CameraIntrinsics) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# Camera list with one line of data per camera:")
	fmt.Fprintln(bw, "#   CAMERA_ID, MODEL, WIDTH, HEIGHT, PARAMS[]")
	fmt.Fprintf(bw, "%d %s %d %d %s %s %s %s\n",
		c.CameraID, c.Model, c.Width, c.Height,
		formatFloat(c.FX), formatFloat(c.FY), formatFloat(c.CX), formatFloat(c.CY))
	return bw.Flush()
}

// WriteImages writes a COLMAP images.txt: one pose line per image followed by
// an empty 2D point line.
func WriteImages(w io.Writer, poses []entity.CameraPose) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# Image list with two lines of data per image:")
	fmt.Fprintln(bw, "#   IMAGE_ID, QW, QX, QY, QZ, TX, TY, TZ, CAMERA_ID, NAME")
	fmt.Fprintln(bw, "#   POINTS2D[] as (X, Y, POINT3D_ID)")
	for _, p := range poses {
		q, t := p.Rotation, p.Translation
		fmt.Fprintf(bw, "%d %s %s %s %s %s %s %s %d %s\n\n",
			p.FrameIndex,
			formatFloat(q.W), formatFloat(q.X), formatFloat(q.Y), formatFloat(q.Z),
			formatFloat(t[0]), formatFloat(t[1]), formatFloat(t[2]),
			p.CameraID, p.Name)
	}
	return bw.Flush()
}

// WritePoints3DHeader writes a points3D.txt with no tracks.
func WritePoints3DHeader(w io.Writer) error {
	_, err := io.WriteString(w, "# 3D point list with one line of data per point:\n"+
		"#   POINT3D_ID, X, Y, Z, R, G, B, ERROR, TRACK[] as (IMAGE_ID, POINT2D_IDX)\n")
	return err
}

// ReadCameras returns the first camera of a cameras.txt. PINHOLE and
// SIMPLE_PINHOLE models are understood; the result is always PINHOLE.
func ReadCameras(r io.Reader) (entity.CameraIntrinsics, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return entity.CameraIntrinsics{}, fmt.Errorf("camera line %q: too few fields", line)
		}
		nums, err := parseFloats(fields[4:])
		if err != nil {
			return entity.CameraIntrinsics{}, fmt.Errorf("camera line %q: %w", line, err)
		}
		id, err1 := strconv.Atoi(fields[0])
		w, err2 := strconv.Atoi(fields[2])
		h, err3 := strconv.Atoi(fields[3])
		if err1 != nil || err2 != nil || err3 != nil {
			return entity.CameraIntrinsics{}, fmt.Errorf("camera line %q: bad integer field", line)
		}
		c := entity.CameraIntrinsics{CameraID: id, Model: entity.CameraModelPinhole, Width: w, Height: h}
		switch {
		case fields[1] == "PINHOLE" && len(nums) == 4:
			c.FX, c.FY, c.CX, c.CY = nums[0], nums[1], nums[2], nums[3]
		case fields[1] == "SIMPLE_PINHOLE" && len(nums) == 3:
			c.FX, c.FY, c.CX, c.CY = nums[0], nums[0], nums[1], nums[2]
		default:
			return entity.CameraIntrinsics{}, fmt.Errorf("unsupported camera model %s with %d params", fields[1], len(nums))
		}
		return c, nil
	}
	if err := sc.Err(); err != nil {
		return entity.CameraIntrinsics{}, err
	}
	return entity.CameraIntrinsics{}, fmt.Errorf("no camera found")
}

// ReadImages parses the pose lines of an images.txt. Every pose line is
// followed by a 2D point line, which is skipped.
func ReadImages(r io.Reader) ([]entity.CameraPose, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64<<20)

	var poses []entity.CameraPose
	expectPose := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if !expectPose {
			expectPose = true
			continue
		}
		if line == "" {
			continue
		}
		p, err := parsePoseLine(line)
		if err != nil {
			return nil, err
		}
		poses = append(poses, p)
		expectPose = false
	}
	return poses, sc.Err()
}

func parsePoseLine(line string) (entity.CameraPose, error) {
	fields := strings.Fields(line)
	if len(fields) < 10 {
		return entity.CameraPose{}, fmt.Errorf("image line %q: want 10 fields, got %d", line, len(fields))
	}
	nums, err := parseFloats(fields[1:8])
	if err != nil {
		return entity.CameraPose{}, fmt.Errorf("image line %q: %w", line, err)
	}
	camID, err := strconv.Atoi(fields[8])
	if err != nil {
		return entity.CameraPose{}, fmt.Errorf("image line %q: camera id: %w", line, err)
	}
	name := strings.Join(fields[9:], " ")
	return entity.CameraPose{
		FrameIndex:  FrameIndexOf(name),
		Rotation:    entity.Quaternion{W: nums[0], X: nums[1], Y: nums[2], Z: nums[3]},
		Translation: [3]float64{nums[4], nums[5], nums[6]},
		CameraID:    camID,
		Name:        name,
	}, nil
}

// FrameIndexOf extracts the index from a frame file name, or 0 if the name
// does not follow the frame pattern.
func FrameIndexOf(name string) int {
	digits, ok := strings.CutPrefix(name, "frame_")
	if !ok {
		return 0
	}
	digits, ok = strings.CutSuffix(digits, ".jpg")
	if !ok {
		return 0
	}
	idx, err := strconv.Atoi(digits)
	if err != nil || idx < 1 || entity.FrameName(idx) != name {
		return 0
	}
	return idx
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
