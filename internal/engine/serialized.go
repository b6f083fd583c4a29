package engine

import (
	"context"
	"image"
	"time"

	"golang.org/x/sync/semaphore"
)

// Serialized guards a Generative backend with one weight-1 semaphore per
// capability. The backends hold large model state on a single device, and
// interleaved invocations contend for device memory, so concurrent calls
// queue behind the in-flight one instead.
type Serialized struct {
	inner   Generative
	txt2img *semaphore.Weighted
	img2img *semaphore.Weighted
}

// NewSerialized wraps inner so that at most one invocation per capability
// runs at a time.
func NewSerialized(inner Generative) *Serialized {
	return &Serialized{
		inner:   inner,
		txt2img: semaphore.NewWeighted(1),
		img2img: semaphore.NewWeighted(1),
	}
}

func (s *Serialized) TextToImage(ctx context.Context, req TextToImageRequest) (image.Image, error) {
	if err := s.txt2img.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.txt2img.Release(1)
	return s.inner.TextToImage(ctx, req)
}

func (s *Serialized) ImageToImage(ctx context.Context, req ImageToImageRequest) (image.Image, error) {
	if err := s.img2img.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.img2img.Release(1)
	return s.inner.ImageToImage(ctx, req)
}

var _ Generative = (*Serialized)(nil)

type timeoutEngine struct {
	inner Generative
	limit time.Duration
}

// WithTimeout bounds every generative call to limit. Generative latency is
// otherwise unbounded, so the cap keeps a wedged backend from pinning a
// request forever. A non-positive limit disables the bound.
func WithTimeout(inner Generative, limit time.Duration) Generative {
	if limit <= 0 {
		return inner
	}
	return &timeoutEngine{inner: inner, limit: limit}
}

func (t *timeoutEngine) TextToImage(ctx context.Context, req TextToImageRequest) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, t.limit)
	defer cancel()
	return t.inner.TextToImage(ctx, req)
}

func (t *timeoutEngine) ImageToImage(ctx context.Context, req ImageToImageRequest) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, t.limit)
	defer cancel()
	return t.inner.ImageToImage(ctx, req)
}

var _ Generative = (*timeoutEngine)(nil)
