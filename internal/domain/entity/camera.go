package entity

import "math"

const (
	CameraModelPinhole = "PINHOLE"
	DefaultCameraID    = 1
)

// Quaternion is a scalar-first rotation quaternion.
type Quaternion struct {
	W, X, Y, Z float64
}

func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

type CameraPose struct {
	FrameIndex  int
	Rotation    Quaternion
	Translation [3]float64
	CameraID    int
	Name        string
}

// CameraIntrinsics describe the single shared camera of a session.
type CameraIntrinsics struct {
	CameraID int
	Model    string
	Width    int
	Height   int
	FX, FY   float64
	CX, CY   float64
}

type PoseSource string

const (
	PoseSourceReconstruction PoseSource = "reconstruction"
	PoseSourceSynthetic      PoseSource = "synthetic"
	PoseSourceSimulated      PoseSource = "simulated"
)

type PoseSet struct {
	Intrinsics CameraIntrinsics
	Poses      []CameraPose
	Source     PoseSource
}

type PointCloudPoint struct {
	Position [3]float64
	Color    [3]uint8
}
