package service

// Regressor predicts a next-period return from a scaled feature vector.
type Regressor interface {
	Predict(x []float64) float64
}

// Scaler maps raw feature vectors into the space the regressor was fit on.
type Scaler interface {
	Transform(x []float64) []float64
}
