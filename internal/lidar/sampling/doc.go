// Package sampling reduces point clouds for rendering.
//
// Responsibilities: uniform random subsampling without replacement
// (Sample) and spatial thinning on a voxel grid (VoxelDownsample).
// Both keep the relative order of surviving points and carry every
// attribute in lockstep.
//
// Dependency rule: sampling depends only on cloud.
package sampling
