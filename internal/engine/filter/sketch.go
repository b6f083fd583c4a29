package filter

import (
	"image"

	"github.com/disintegration/imaging"
)

// Pencil-sketch parameters. Fixed by contract so the filter stays
// deterministic across invocations.
const (
	sketchSmoothingScale = 60.0
	sketchRangeSigma     = 0.07
	sketchShadeFactor    = 0.05
)

// Sketch renders img as a grayscale pencil sketch: grayscale, invert, blur,
// then a color-dodge blend of the gray layer over the blurred inverse,
// lightened by the shade factor. Pure function; identical input bytes yield
// identical output bytes.
func Sketch(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	inverted := imaging.Invert(gray)
	blurred := imaging.Blur(inverted, sketchSmoothingScale*sketchRangeSigma)

	bounds := gray.Bounds()
	out := image.NewNRGBA(bounds)
	for i := 0; i < len(gray.Pix); i += 4 {
		v := dodge(gray.Pix[i], blurred.Pix[i])
		v = shade(v, sketchShadeFactor)
		out.Pix[i] = v
		out.Pix[i+1] = v
		out.Pix[i+2] = v
		out.Pix[i+3] = gray.Pix[i+3]
	}
	return out
}

// dodge brightens base by the inverse of the blurred mask, the classic
// pencil-sketch blend.
func dodge(base, mask uint8) uint8 {
	if mask >= 255 {
		return 255
	}
	v := int(base) * 256 / (256 - int(mask))
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// shade pulls the dodged value toward white by factor, simulating paper.
func shade(v uint8, factor float64) uint8 {
	return uint8(float64(v)*(1-factor) + 255*factor)
}
