package openaiimg

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"server/internal/engine"
	"server/internal/infra"
)

// ErrMissingAPIKey indicates the adapter was configured without credentials.
var ErrMissingAPIKey = errors.New("openaiimg: api key is required")

// Options configures the OpenAI images adapter.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  *infra.Logger
}

// Engine generates and edits images through the OpenAI Images API. It is an
// alternative backend to the self-hosted diffusion server; guidance and
// strength have no API equivalent and are accepted but ignored.
type Engine struct {
	client openai.Client
	model  string
	logger *infra.Logger
}

// NewEngine constructs the adapter or fails when credentials are absent.
func NewEngine(opts Options) (*Engine, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = string(openai.ImageModelDallE2)
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Engine{
		client: openai.NewClient(reqOpts...),
		model:  model,
		logger: logger,
	}, nil
}

// TextToImage synthesizes one image from the prompt.
func (e *Engine) TextToImage(ctx context.Context, req engine.TextToImageRequest) (image.Image, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("openaiimg: prompt is required")
	}
	res, err := e.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(e.model),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openaiimg: generate: %w", err)
	}
	img, err := decodeFirst(res)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Str("model", e.model).Msg("openaiimg: synthesized image")
	return img, nil
}

// ImageToImage edits the source image guided by the prompt.
func (e *Engine) ImageToImage(ctx context.Context, req engine.ImageToImageRequest) (image.Image, error) {
	if req.Image == nil {
		return nil, errors.New("openaiimg: source image is required")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, req.Image); err != nil {
		return nil, fmt.Errorf("openaiimg: encode source: %w", err)
	}
	res, err := e.client.Images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(buf.Bytes()), "source.png", "image/png"),
		},
		Prompt:         strings.TrimSpace(req.Prompt),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageEditParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openaiimg: edit: %w", err)
	}
	img, err := decodeFirst(res)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Str("model", e.model).Msg("openaiimg: restyled image")
	return img, nil
}

func decodeFirst(res *openai.ImagesResponse) (image.Image, error) {
	if res == nil || len(res.Data) == 0 {
		return nil, errors.New("openaiimg: empty response")
	}
	data, err := base64.StdEncoding.DecodeString(res.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("openaiimg: decode payload: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("openaiimg: decode image: %w", err)
	}
	return img, nil
}

var _ engine.Generative = (*Engine)(nil)
