package models

import "errors"

var (
	ErrDataUnavailable     = errors.New("no price data available for any symbol")
	ErrNoTrainingData      = errors.New("no valid training samples")
	ErrInsufficientSymbols = errors.New("insufficient verified symbols")
	ErrNotTrained          = errors.New("no stock data available, train the model first")
	ErrArtifactsNotFound   = errors.New("model artifacts not found")
	ErrNoRecommendations   = errors.New("no recommendations available")
	ErrNoSegmentsTrained   = errors.New("failed to train any segment")
	ErrRetrainInProgress   = errors.New("retrain already in progress")
	ErrNoBars              = errors.New("no bars returned")
)
