package facematch

import "image"

// ExpandBox grows box by Margin pixels on every side while keeping it inside
// bounds. When the box sits close to an edge the margin on that axis shrinks
// to the smaller of the free space on either side, so the face stays
// centred in the crop.
func ExpandBox(box, bounds image.Rectangle) image.Rectangle {
	box = box.Intersect(bounds)
	if box.Empty() {
		return image.Rectangle{}
	}

	mx := min(Margin, box.Min.X-bounds.Min.X, bounds.Max.X-box.Max.X)
	my := min(Margin, box.Min.Y-bounds.Min.Y, bounds.Max.Y-box.Max.Y)

	return image.Rect(box.Min.X-mx, box.Min.Y-my, box.Max.X+mx, box.Max.Y+my)
}

// CaptionOrigin is where the caption baseline starts for a drawn box.
func CaptionOrigin(box image.Rectangle) image.Point {
	return image.Pt(box.Min.X, box.Min.Y-5)
}
