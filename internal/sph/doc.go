// Package sph holds the particle state and the per-step field updaters of
// an explicit smoothed particle hydrodynamics solver.
//
// A step runs the updaters in a fixed order over a shared particle slice and
// the pair list built by [NeighborIndex]:
//
//	HalfKick -> Drift -> Density -> ArtificialViscosity -> Stress ->
//	Acceleration -> HalfKick -> ConservativeSmoothing
//
// Gather stages (Density, Acceleration) read the block of pairs owned by a
// particle. Scatter stages (ArtificialViscosity, ConservativeSmoothing) walk
// each unordered pair once and fold into per-worker buffers.
package sph
