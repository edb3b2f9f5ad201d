package sim

import "errors"

// Contract violations.
var (
	// ErrActionSize is returned when an action mask does not cover the current candidate set.
	ErrActionSize = errors.New("action mask size does not match candidate count")

	// ErrNotSubsequence is returned when UpdateCache receives ids that are not an
	// ordered sub-sequence of the last candidate set.
	ErrNotSubsequence = errors.New("selected contents are not a sub-sequence of the candidate set")

	// ErrDimensionMismatch is returned when embedding and structural feature widths differ.
	ErrDimensionMismatch = errors.New("embedding dimensionality does not match structural features")

	// ErrShapeMismatch is returned when the engine hands back a buffer whose length
	// disagrees with the candidate set it describes.
	ErrShapeMismatch = errors.New("engine buffer shape mismatch")
)

// Engine faults.
var (
	// ErrStalledSimulation is returned when a Step exceeds its tick guard without
	// reaching a decision point or the end of the trace.
	ErrStalledSimulation = errors.New("stalled simulation")

	// ErrGameOver is returned by Step once the engine has reported the trace finished.
	ErrGameOver = errors.New("game is over; call Reset")

	// ErrNotReset is returned by Step before the first Reset.
	ErrNotReset = errors.New("environment has not been reset")

	// ErrSessionClosed is returned by any Session call after Close.
	ErrSessionClosed = errors.New("session is closed")
)

// Configuration errors.
var (
	// ErrUnknownFeature is returned for feature family names that are not recognized.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrNoEmbeddingSource is returned when augmentation is requested without a source.
	ErrNoEmbeddingSource = errors.New("embedding augmentation requested without an embedding source")

	// ErrFeaturesConfigured is returned when structural features are configured twice.
	ErrFeaturesConfigured = errors.New("features already configured")

	// ErrInvalidConfig is returned for out-of-range configuration values.
	ErrInvalidConfig = errors.New("invalid configuration")
)
