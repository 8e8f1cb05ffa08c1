// Package scene holds the geometric side of preprocessing: synthetic camera
// trajectories, rotation/quaternion conversion, the seed point cloud, and the
// COLMAP text and ASCII PLY formats the training engine reads.
package scene
