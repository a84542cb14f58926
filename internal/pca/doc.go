// Package pca is the batch statistics engine: per-batch centroid, sample
// covariance and closed-form 2x2 eigen-decomposition of an event cloud.
//
// Everything here is a pure function of its input. The package never logs
// and never retains a batch.
//
// Dependency rule: pca may depend on events only.
package pca
