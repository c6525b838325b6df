// Package ml implements the stacking ensemble: base learners trained out-of-fold,
// a multinomial meta-learner and the supporting scoring utilities.
package ml

import "errors"

var (
	// ErrEmptyDataset indicates a training set without rows
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrDimensionMismatch indicates rows of differing width or labels of differing length
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidLabel indicates a class label outside 0..2
	ErrInvalidLabel = errors.New("invalid class label")

	// ErrNotFitted indicates prediction on an untrained model
	ErrNotFitted = errors.New("model not fitted")

	// ErrNotConverged indicates a learner produced non-finite or degenerate output
	ErrNotConverged = errors.New("learner did not converge")

	// ErrUnknownLearner indicates an unsupported learner kind
	ErrUnknownLearner = errors.New("unknown learner kind")

	// ErrTooFewSamples indicates a dataset too small for the requested folds
	ErrTooFewSamples = errors.New("too few samples for cross-validation")
)
