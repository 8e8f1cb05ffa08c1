package scene

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
)

var plyProperties = []string{
	"property float x",
	"property float y",
	"property float z",
	"property uchar red",
	"property uchar green",
	"property uchar blue",
}

// WritePLY writes points as an ASCII PLY file with float positions and
// uchar colours, in the property order the training engine expects.
func WritePLY(w io.Writer, points []entity.PointCloudPoint) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "ply")
	fmt.Fprintln(bw, "format ascii 1.0")
	fmt.Fprintf(bw, "element vertex %d\n", len(points))
	for _, p := range plyProperties {
		fmt.Fprintln(bw, p)
	}
	fmt.Fprintln(bw, "end_header")

	var line []byte
	for _, p := range points {
		line = line[:0]
		for axis := 0; axis < 3; axis++ {
			line = strconv.AppendFloat(line, p.Position[axis], 'g', -1, 32)
			line = append(line, ' ')
		}
		line = strconv.AppendUint(line, uint64(p.Color[0]), 10)
		line = append(line, ' ')
		line = strconv.AppendUint(line, uint64(p.Color[1]), 10)
		line = append(line, ' ')
		line = strconv.AppendUint(line, uint64(p.Color[2]), 10)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadPLY reads an ASCII PLY in the layout WritePLY produces.
func ReadPLY(r io.Reader) ([]entity.PointCloudPoint, error) {
	sc := bufio.NewScanner(r)
	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return strings.TrimSpace(sc.Text()), true
	}

	if l, ok := next(); !ok || l != "ply" {
		return nil, fmt.Errorf("ply: missing magic")
	}
	if l, ok := next(); !ok || l != "format ascii 1.0" {
		return nil, fmt.Errorf("ply: only ascii 1.0 is supported")
	}

	count := -1
	var props []string
	for {
		l, ok := next()
		if !ok {
			return nil, fmt.Errorf("ply: missing end_header")
		}
		if l == "end_header" {
			break
		}
		switch {
		case strings.HasPrefix(l, "comment"):
		case strings.HasPrefix(l, "element vertex "):
			n, err := strconv.Atoi(strings.TrimPrefix(l, "element vertex "))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("ply: bad vertex count %q", l)
			}
			count = n
		case strings.HasPrefix(l, "property "):
			props = append(props, l)
		default:
			return nil, fmt.Errorf("ply: unexpected header line %q", l)
		}
	}
	if count < 0 {
		return nil, fmt.Errorf("ply: no vertex element")
	}
	if strings.Join(props, "\n") != strings.Join(plyProperties, "\n") {
		return nil, fmt.Errorf("ply: unsupported vertex properties %v", props)
	}

	points := make([]entity.PointCloudPoint, 0, count)
	for len(points) < count {
		l, ok := next()
		if !ok {
			return nil, fmt.Errorf("ply: expected %d vertices, got %d", count, len(points))
		}
		fields := strings.Fields(l)
		if len(fields) != 6 {
			return nil, fmt.Errorf("ply: vertex %d: want 6 fields, got %d", len(points), len(fields))
		}
		var p entity.PointCloudPoint
		for axis := 0; axis < 3; axis++ {
			v, err := strconv.ParseFloat(fields[axis], 32)
			if err != nil {
				return nil, fmt.Errorf("ply: vertex %d: %w", len(points), err)
			}
			p.Position[axis] = v
		}
		for c := 0; c < 3; c++ {
			v, err := strconv.ParseUint(fields[3+c], 10, 8)
			if err != nil {
				return nil, fmt.Errorf("ply: vertex %d: %w", len(points), err)
			}
			p.Color[c] = uint8(v)
		}
		points = append(points, p)
	}
	return points, sc.Err()
}

// Downsample returns at most n points chosen without replacement.
func Downsample(points []entity.PointCloudPoint, n int, seed uint64) []entity.PointCloudPoint {
	if n <= 0 || len(points) <= n {
		return points
	}
	rng := newRand(seed)
	out := make([]entity.PointCloudPoint, 0, n)
	for _, i := range rng.Perm(len(points))[:n] {
		out = append(out, points[i])
	}
	return out
}
