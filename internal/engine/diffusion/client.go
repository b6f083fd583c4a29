package diffusion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/engine"
	"server/internal/infra"
)

// ErrEmptyResult indicates the inference server answered without an image.
var ErrEmptyResult = errors.New("diffusion: no image in response")

// Options configures the Stable Diffusion inference client.
type Options struct {
	BaseURL        string
	Steps          int
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against a Stable Diffusion inference server
// exposing the txt2img/img2img API. The model weights live in the server
// process and are loaded once; this client holds no model state of its own.
type Client struct {
	baseURL    string
	steps      int
	httpClient *http.Client
	logger     *infra.Logger
}

type txt2imgRequest struct {
	Prompt   string  `json:"prompt"`
	CFGScale float64 `json:"cfg_scale"`
	Steps    int     `json:"steps,omitempty"`
}

type img2imgRequest struct {
	InitImages        []string `json:"init_images"`
	Prompt            string   `json:"prompt"`
	DenoisingStrength float64  `json:"denoising_strength"`
	CFGScale          float64  `json:"cfg_scale"`
	Width             int      `json:"width"`
	Height            int      `json:"height"`
	Steps             int      `json:"steps,omitempty"`
}

type generationResponse struct {
	Images []string `json:"images"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:7860"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		baseURL:    baseURL,
		steps:      opts.Steps,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// TextToImage synthesizes a single image from a prompt.
func (c *Client) TextToImage(ctx context.Context, req engine.TextToImageRequest) (image.Image, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("diffusion: prompt is required")
	}
	payload := txt2imgRequest{
		Prompt:   prompt,
		CFGScale: req.GuidanceScale,
		Steps:    c.steps,
	}
	img, err := c.generate(ctx, "/sdapi/v1/txt2img", payload)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("prompt", prompt).Msg("diffusion: synthesized image")
	return img, nil
}

// ImageToImage restyles the source image guided by the prompt.
func (c *Client) ImageToImage(ctx context.Context, req engine.ImageToImageRequest) (image.Image, error) {
	if req.Image == nil {
		return nil, errors.New("diffusion: source image is required")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, req.Image); err != nil {
		return nil, fmt.Errorf("diffusion: encode source: %w", err)
	}
	bounds := req.Image.Bounds()
	payload := img2imgRequest{
		InitImages:        []string{base64.StdEncoding.EncodeToString(buf.Bytes())},
		Prompt:            strings.TrimSpace(req.Prompt),
		DenoisingStrength: req.Strength,
		CFGScale:          req.GuidanceScale,
		Width:             bounds.Dx(),
		Height:            bounds.Dy(),
		Steps:             c.steps,
	}
	img, err := c.generate(ctx, "/sdapi/v1/img2img", payload)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Int("width", bounds.Dx()).Int("height", bounds.Dy()).Msg("diffusion: restyled image")
	return img, nil
}

func (c *Client) generate(ctx context.Context, path string, payload any) (image.Image, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("diffusion: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("diffusion: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("diffusion: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("diffusion: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil {
			msg := detail.Error
			if msg == "" {
				msg = detail.Detail
			}
			if msg != "" {
				return nil, fmt.Errorf("diffusion: %s", msg)
			}
		}
		return nil, fmt.Errorf("diffusion: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("diffusion: decode response: %w", err)
	}
	if len(decoded.Images) == 0 {
		return nil, ErrEmptyResult
	}
	data, err := base64.StdEncoding.DecodeString(decoded.Images[0])
	if err != nil {
		return nil, fmt.Errorf("diffusion: decode image payload: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("diffusion: decode image: %w", err)
	}
	return img, nil
}

var _ engine.Generative = (*Client)(nil)
