package facematch

// Params are the LBPH hyperparameters. A model must be loaded with the
// same values it was trained with.
type Params struct {
	Radius    int     `yaml:"radius"`
	Neighbors int     `yaml:"neighbors"`
	GridX     int     `yaml:"grid_x"`
	GridY     int     `yaml:"grid_y"`
	Threshold float64 `yaml:"threshold"`
}

// DefaultParams is shared by training and recognition.
var DefaultParams = Params{
	Radius:    2,
	Neighbors: 16,
	GridX:     8,
	GridY:     8,
	Threshold: 75.0,
}

const (
	// SampleSize is the edge length of every face image handed to the model.
	SampleSize = 200
	// Margin is added on each side of a detected face box before cropping.
	Margin = 10
)

// Prediction is the nearest identity for one face and its distance.
// Lower distance means a closer match.
type Prediction struct {
	ID       int
	Distance float64
}
