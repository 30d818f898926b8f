package facematch

import (
	"fmt"

	"github.com/abihf/facewatch/labels"
)

// Names resolves identity ids to display names.
type Names interface {
	Lookup(id int) (string, bool)
}

// Resolve applies the confidence gate to a prediction. The name is returned
// only when the id is registered and the distance is strictly below
// threshold; everything else is labels.Unknown.
func Resolve(names Names, p Prediction, threshold float64) string {
	if names == nil {
		return labels.Unknown
	}
	name, ok := names.Lookup(p.ID)
	if !ok || !(p.Distance < threshold) {
		return labels.Unknown
	}
	return name
}

// Caption is the text drawn above a recognized face.
func Caption(name string, distance float64) string {
	return fmt.Sprintf("%s (%.1f)", name, distance)
}
