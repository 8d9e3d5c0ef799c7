// Package learn implements an active-learning control loop that trains a
// surrogate force-field model against an expensive ground-truth oracle.
//
// The loop predicts forces on each frame with the current surrogate, scores
// the prediction's trustworthiness against configurable uncertainty and
// force-error thresholds, admits a bounded subset of untrusted atoms to the
// surrogate's training set, retrains on a schedule, and persists checkpoints
// so long runs can resume after interruption.
//
// Two drivers share the same selection/training/checkpoint protocol:
// TrajectoryLearner replays a pre-labeled trajectory, and OnTheFlyLearner
// drives a live molecular-dynamics run, invoking the oracle in-line whenever
// the surrogate's uncertainty is out of bound.
package learn
