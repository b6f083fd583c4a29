package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"server/internal/domain"
	"server/internal/engine"
	"server/internal/engine/filter"
	"server/internal/infra"
	"server/internal/storage"
)

// Fixed sampling parameters, mirroring the values the installation has
// always run with.
const (
	defaultGuidanceScale = 7.5
	restyleStrength      = 0.7

	defaultRestylePrompt = "realistic landscape, vivid colors, detailed painting"
)

// Name prefixes identify which operation produced an artifact.
const (
	prefixSaved   = "img"
	prefixText    = "text"
	prefixSketch  = "sketch"
	prefixRestyle = "gen"
	mirrorPrefix  = "vr_"
)

// Pipeline is the single orchestration point between the HTTP surface, the
// artifact store, and the transform engines. It validates a request,
// resolves the source artifact, dispatches exactly one engine call, and
// writes the result back as a new artifact.
type Pipeline struct {
	store   *storage.FileStore
	gen     engine.Generative
	baseURL string
	logger  *infra.Logger
}

// New wires a pipeline. baseURL is the public prefix under which stored
// artifacts are served.
func New(store *storage.FileStore, gen engine.Generative, baseURL string, logger *infra.Logger) *Pipeline {
	return &Pipeline{
		store:   store,
		gen:     gen,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// SaveRaw decodes an inbound data URL and stores it as a new artifact.
func (p *Pipeline) SaveRaw(ctx context.Context, dataURL string) (*domain.Artifact, error) {
	parsed, err := domain.ParseDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	name, err := p.store.Put(ctx, parsed.Data, prefixSaved, parsed.Ext())
	if err != nil {
		return nil, err
	}
	p.logger.Info().Str("name", name).Int("bytes", len(parsed.Data)).Msg("pipeline: saved upload")
	return p.artifact(name), nil
}

// TextToImage synthesizes a new artifact from a text prompt. The engine is
// never invoked for a blank prompt.
func (p *Pipeline) TextToImage(ctx context.Context, prompt string) (*domain.Artifact, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	img, err := p.invoke(func() (image.Image, error) {
		return p.gen.TextToImage(ctx, engine.TextToImageRequest{
			Prompt:        prompt,
			GuidanceScale: defaultGuidanceScale,
		})
	})
	if err != nil {
		return nil, err
	}
	name, err := p.storePNG(ctx, img, prefixText)
	if err != nil {
		return nil, err
	}
	p.logger.Info().Str("name", name).Msg("pipeline: synthesized image from prompt")
	return p.artifact(name), nil
}

// Sketch renders a stored artifact as a pencil sketch. Deterministic for a
// given source.
func (p *Pipeline) Sketch(ctx context.Context, sourceName string) (*domain.Artifact, error) {
	src, err := p.resolve(ctx, sourceName)
	if err != nil {
		return nil, err
	}
	out, err := p.invoke(func() (image.Image, error) {
		return filter.Sketch(src), nil
	})
	if err != nil {
		return nil, err
	}
	name, err := p.storePNG(ctx, out, prefixSketch)
	if err != nil {
		return nil, err
	}
	p.logger.Info().Str("source", sourceName).Str("name", name).Msg("pipeline: sketched image")
	return p.artifact(name), nil
}

// Restyle reworks a stored artifact with the image-to-image engine. An
// empty prompt falls back to the fixed default.
func (p *Pipeline) Restyle(ctx context.Context, sourceName, prompt string) (*domain.Artifact, error) {
	src, err := p.resolve(ctx, sourceName)
	if err != nil {
		return nil, err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = defaultRestylePrompt
	}
	prepared := prepareForRestyle(src)
	out, err := p.invoke(func() (image.Image, error) {
		return p.gen.ImageToImage(ctx, engine.ImageToImageRequest{
			Image:         prepared,
			Prompt:        prompt,
			Strength:      restyleStrength,
			GuidanceScale: defaultGuidanceScale,
		})
	})
	if err != nil {
		return nil, err
	}
	name, err := p.storePNG(ctx, out, prefixRestyle)
	if err != nil {
		return nil, err
	}
	p.logger.Info().Str("source", sourceName).Str("name", name).Msg("pipeline: restyled image")
	return p.artifact(name), nil
}

// Mirror writes a left-right flipped copy of the source under a derived
// "vr_" name. The name is intentionally not random: repeating the call
// overwrites the previous output with identical content.
func (p *Pipeline) Mirror(ctx context.Context, sourceName string) (*domain.Artifact, error) {
	src, err := p.resolve(ctx, sourceName)
	if err != nil {
		return nil, err
	}
	out, err := p.invoke(func() (image.Image, error) {
		return filter.Mirror(src), nil
	})
	if err != nil {
		return nil, err
	}
	// The derived name keeps the source's extension, so encode to match it.
	data, err := encodeByExt(out, sourceName)
	if err != nil {
		return nil, fmt.Errorf("%w: encode result: %v", domain.ErrEngineFailure, err)
	}
	name, err := p.store.PutNamed(ctx, mirrorPrefix+sourceName, data)
	if err != nil {
		return nil, err
	}
	p.logger.Info().Str("source", sourceName).Str("name", name).Msg("pipeline: mirrored image")
	return p.artifact(name), nil
}

// Delete removes a stored artifact by name.
func (p *Pipeline) Delete(ctx context.Context, name string) error {
	if err := p.store.Delete(ctx, name); err != nil {
		return err
	}
	p.logger.Info().Str("name", name).Msg("pipeline: deleted artifact")
	return nil
}

// List returns the stored artifact names in lexicographic order.
func (p *Pipeline) List(ctx context.Context) ([]string, error) {
	return p.store.List(ctx)
}

// resolve loads and decodes the source artifact for a transform.
func (p *Pipeline) resolve(ctx context.Context, name string) (image.Image, error) {
	data, err := p.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode source: %v", domain.ErrInvalidPayload, err)
	}
	return img, nil
}

// invoke runs one engine call, downgrading any failure, including a panic
// inside the engine, to ErrEngineFailure. A failed transform must never
// take the process down.
func (p *Pipeline) invoke(fn func() (image.Image, error)) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("pipeline: engine panicked")
			img, err = nil, fmt.Errorf("%w: %v", domain.ErrEngineFailure, r)
		}
	}()
	img, err = fn()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineFailure, err)
	}
	return img, nil
}

func (p *Pipeline) storePNG(ctx context.Context, img image.Image, prefix string) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("%w: encode result: %v", domain.ErrEngineFailure, err)
	}
	return p.store.Put(ctx, buf.Bytes(), prefix, "png")
}

func (p *Pipeline) artifact(name string) *domain.Artifact {
	return &domain.Artifact{Name: name, URL: p.baseURL + "/" + name}
}

func encodeByExt(img image.Image, name string) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
			return nil, err
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// prepareForRestyle converts the source to a 3-channel representation and
// floors each dimension to a multiple of 8, the engine's size constraint.
func prepareForRestyle(src image.Image) image.Image {
	img := imaging.Clone(src)
	bounds := img.Bounds()
	w := bounds.Dx() / 8 * 8
	h := bounds.Dy() / 8 * 8
	if w == 0 || h == 0 {
		return img
	}
	if w != bounds.Dx() || h != bounds.Dy() {
		return imaging.Resize(img, w, h, imaging.Lanczos)
	}
	return img
}
