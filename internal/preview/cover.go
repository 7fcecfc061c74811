// Package preview draws live miniatures of unfocused slot windows into
// their back regions and turns clicks on them into focus requests.
package preview

import "github.com/1broseidon/multiboxer/internal/platform"

// CoverCrop returns the part of a srcW x srcH source that, scaled to
// dstW x dstH, fills the destination exactly. The crop is centred and
// keeps the destination aspect ratio, so nothing is letterboxed.
func CoverCrop(srcW, srcH, dstW, dstH int) platform.Rect {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return platform.Rect{}
	}
	// Compare srcW/srcH with dstW/dstH without floating point.
	if srcW*dstH > dstW*srcH {
		// Source is wider: trim the sides.
		w := srcH * dstW / dstH
		return platform.Rect{X: (srcW - w) / 2, Y: 0, Width: w, Height: srcH}
	}
	h := srcW * dstH / dstW
	return platform.Rect{X: 0, Y: (srcH - h) / 2, Width: srcW, Height: h}
}

// Scale returns the source pixels per destination pixel for a crop.
func Scale(crop platform.Rect, dstW int) float64 {
	if dstW <= 0 {
		return 0
	}
	return float64(crop.Width) / float64(dstW)
}
