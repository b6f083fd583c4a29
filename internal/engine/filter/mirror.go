package filter

import (
	"image"

	"github.com/disintegration/imaging"
)

// Mirror flips img left-right. The "VR" view served to clients is this
// simple mirror, not a true equirectangular projection.
func Mirror(img image.Image) image.Image {
	return imaging.FlipH(img)
}
