package scene

import (
	"errors"
	"math"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var WorldUp = r3.Vec{X: 0, Y: 1, Z: 0}

var errDegenerateLookAt = errors.New("look-at direction is parallel to up vector")

// LookAt builds the camera basis for a viewer at eye looking at target. The
// columns of the returned rotation are right, up and back (-forward), so the
// camera looks down its local -Z axis.
func LookAt(eye, target, up r3.Vec) (*mat.Dense, error) {
	dir := r3.Sub(target, eye)
	if r3.Norm(dir) == 0 {
		return nil, errors.New("look-at eye and target coincide")
	}
	forward := r3.Unit(dir)
	right := r3.Cross(forward, up)
	if r3.Norm(right) < 1e-12 {
		return nil, errDegenerateLookAt
	}
	right = r3.Unit(right)
	trueUp := r3.Cross(right, forward)
	back := r3.Scale(-1, forward)

	return mat.NewDense(3, 3, []float64{
		right.X, trueUp.X, back.X,
		right.Y, trueUp.Y, back.Y,
		right.Z, trueUp.Z, back.Z,
	}), nil
}

// RotationToQuaternion converts a 3x3 rotation matrix to a unit quaternion.
// The branch is chosen by the trace and the largest diagonal element so the
// divisor never approaches zero.
func RotationToQuaternion(r mat.Matrix) quat.Number {
	m00, m11, m22 := r.At(0, 0), r.At(1, 1), r.At(2, 2)
	tr := m00 + m11 + m22

	var q quat.Number
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		q = quat.Number{
			Real: 0.25 * s,
			Imag: (r.At(2, 1) - r.At(1, 2)) / s,
			Jmag: (r.At(0, 2) - r.At(2, 0)) / s,
			Kmag: (r.At(1, 0) - r.At(0, 1)) / s,
		}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = quat.Number{
			Real: (r.At(2, 1) - r.At(1, 2)) / s,
			Imag: 0.25 * s,
			Jmag: (r.At(0, 1) + r.At(1, 0)) / s,
			Kmag: (r.At(0, 2) + r.At(2, 0)) / s,
		}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = quat.Number{
			Real: (r.At(0, 2) - r.At(2, 0)) / s,
			Imag: (r.At(0, 1) + r.At(1, 0)) / s,
			Jmag: 0.25 * s,
			Kmag: (r.At(1, 2) + r.At(2, 1)) / s,
		}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = quat.Number{
			Real: (r.At(1, 0) - r.At(0, 1)) / s,
			Imag: (r.At(0, 2) + r.At(2, 0)) / s,
			Jmag: (r.At(1, 2) + r.At(2, 1)) / s,
			Kmag: 0.25 * s,
		}
	}
	return quat.Scale(1/quat.Abs(q), q)
}

// QuaternionToRotation returns the rotation matrix of q after normalising it.
func QuaternionToRotation(q quat.Number) *mat.Dense {
	q = quat.Scale(1/quat.Abs(q), q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
}

func toEntity(q quat.Number) entity.Quaternion {
	return entity.Quaternion{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

func fromEntity(q entity.Quaternion) quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// CameraCenter recovers the world position stored in a pose written by the
// synthesizer, whose translation is -Rᵀ·p.
func CameraCenter(p entity.CameraPose) r3.Vec {
	r := QuaternionToRotation(fromEntity(p.Rotation))
	t := mat.NewVecDense(3, p.Translation[:])
	var c mat.VecDense
	c.MulVec(r, t)
	c.ScaleVec(-1, &c)
	return r3.Vec{X: c.AtVec(0), Y: c.AtVec(1), Z: c.AtVec(2)}
}

// ViewDirection is the world direction the pose's camera looks along.
func ViewDirection(p entity.CameraPose) r3.Vec {
	r := QuaternionToRotation(fromEntity(p.Rotation))
	return r3.Vec{X: -r.At(0, 2), Y: -r.At(1, 2), Z: -r.At(2, 2)}
}
