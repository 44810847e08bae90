package evaluation

import "errors"

// Sentinel kinds for evaluation errors.
var (
	ErrInvalidDataset     = errors.New("invalid dataset")
	ErrInvalidLimit       = errors.New("limit must be positive")
	ErrNoEvaluableRecords = errors.New("no record in the dataset has references")
	ErrRecommender        = errors.New("recommender failed")
)
