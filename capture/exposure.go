package capture

// usableExposure reports whether the share of dark pixels lies between 10%
// and 70%. IR cameras alternate lit and unlit frames; the unlit ones fail.
func usableExposure(luma []byte) bool {
	if len(luma) == 0 {
		return false
	}
	dark := 0
	for _, y := range luma {
		if y < 80 {
			dark++
		}
	}
	darkness := float64(dark) / float64(len(luma))
	return darkness > 0.1 && darkness < 0.7
}
