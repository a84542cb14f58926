// Package events owns the event-camera sample model and the source
// capability set the accumulator pulls from.
//
// Key types: Sample, Batch, Source.
// Concrete sources: SliceSource (in-memory replay), SyntheticSource
// (rotating bar generator) and Slicer (re-batching decorator).
//
// Dependency rule: events must not depend on pca or series.
package events
