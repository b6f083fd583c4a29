package engine

import (
	"context"
	"image"
)

// TextToImageRequest captures the inputs for prompt-driven synthesis.
type TextToImageRequest struct {
	Prompt        string
	GuidanceScale float64
}

// ImageToImageRequest captures the inputs for prompt-guided restyling of an
// existing image. Strength controls how far the output drifts from the
// source.
type ImageToImageRequest struct {
	Image         image.Image
	Prompt        string
	Strength      float64
	GuidanceScale float64
}

// Generative is the contract implemented by all generative image backends.
type Generative interface {
	TextToImage(ctx context.Context, req TextToImageRequest) (image.Image, error)
	ImageToImage(ctx context.Context, req ImageToImageRequest) (image.Image, error)
}
