package handlers_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/engine"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/storage"
)

type stubEngine struct {
	txt2imgCalls int
	err          error
}

func (s *stubEngine) TextToImage(ctx context.Context, req engine.TextToImageRequest) (image.Image, error) {
	s.txt2imgCalls++
	if s.err != nil {
		return nil, s.err
	}
	return image.NewNRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (s *stubEngine) ImageToImage(ctx context.Context, req engine.ImageToImageRequest) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	return image.NewNRGBA(image.Rect(0, 0, 8, 8)), nil
}

func newTestServer(t *testing.T, stub *stubEngine) *httptest.Server {
	t.Helper()
	cfg := &infra.Config{
		AppEnv:         "test",
		EngineProvider: infra.EngineProviderDiffusion,
	}
	logger := infra.Logger(zerolog.New(io.Discard))

	saved, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	generated, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	p := pipeline.New(saved, stub, "/static/saved", &logger)
	app := handlers.NewApp(cfg, &logger, p, saved, generated)
	srv := httptest.NewServer(httpapi.NewRouter(app))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func pngDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	img.SetNRGBA(2, 2, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestSaveAndServe(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	resp, body := postJSON(t, srv.URL+"/api/save", map[string]string{"dataUrl": pngDataURL(t)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	filename, _ := body["filename"].(string)
	assert.Regexp(t, `^img_[0-9a-f]{32}\.png$`, filename)
	assert.Equal(t, "/static/saved/"+filename, body["url"])

	// The returned URL resolves through the static mount.
	fileResp, err := http.Get(srv.URL + body["url"].(string))
	require.NoError(t, err)
	defer fileResp.Body.Close()
	assert.Equal(t, http.StatusOK, fileResp.StatusCode)
}

func TestSaveMissingField(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	resp, body := postJSON(t, srv.URL+"/api/save", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["ok"])
}

func TestSaveInvalidPayload(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	resp, _ := postJSON(t, srv.URL+"/api/save", map[string]string{"dataUrl": "data:image/png;base64,???"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteAbsent(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	resp, body := postJSON(t, srv.URL+"/api/delete", map[string]string{"filename": "nope.png"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["ok"])
}

func TestDeleteThenGone(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	_, saved := postJSON(t, srv.URL+"/api/save", map[string]string{"dataUrl": pngDataURL(t)})
	filename := saved["filename"].(string)

	resp, body := postJSON(t, srv.URL+"/api/delete", map[string]string{"filename": filename})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])

	resp, _ = postJSON(t, srv.URL+"/api/delete", map[string]string{"filename": filename})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTextGenerateEmptyPrompt(t *testing.T) {
	stub := &stubEngine{}
	srv := newTestServer(t, stub)

	resp, body := postJSON(t, srv.URL+"/api/text_generate", map[string]string{"prompt": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["ok"])
	assert.Zero(t, stub.txt2imgCalls)
}

func TestTextGenerate(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	resp, body := postJSON(t, srv.URL+"/api/text_generate", map[string]string{"prompt": "a quiet harbor"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Regexp(t, `^text_[0-9a-f]{32}\.png$`, body["filename"])
}

func TestTextGenerateEngineFailure(t *testing.T) {
	srv := newTestServer(t, &stubEngine{err: errors.New("model crashed")})

	resp, body := postJSON(t, srv.URL+"/api/text_generate", map[string]string{"prompt": "x"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["ok"])
}

func TestGenerateSketchFlow(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	resp, _ := postJSON(t, srv.URL+"/api/generate_sketch", map[string]string{"filename": "missing.png"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, saved := postJSON(t, srv.URL+"/api/save", map[string]string{"dataUrl": pngDataURL(t)})
	resp, body := postJSON(t, srv.URL+"/api/generate_sketch", map[string]string{"filename": saved["filename"].(string)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Regexp(t, `^sketch_[0-9a-f]{32}\.png$`, body["filename"])
}

func TestGenerateImageFlow(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	resp, _ := postJSON(t, srv.URL+"/api/generate_image", map[string]string{"filename": "missing.png"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, saved := postJSON(t, srv.URL+"/api/save", map[string]string{"dataUrl": pngDataURL(t)})
	resp, body := postJSON(t, srv.URL+"/api/generate_image", map[string]string{"filename": saved["filename"].(string)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Regexp(t, `^gen_[0-9a-f]{32}\.png$`, body["filename"])
}

func TestGenerateVR(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	resp, _ := postJSON(t, srv.URL+"/api/generate_vr", map[string]string{"filename": "missing.png"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, saved := postJSON(t, srv.URL+"/api/save", map[string]string{"dataUrl": pngDataURL(t)})
	filename := saved["filename"].(string)

	resp, body := postJSON(t, srv.URL+"/api/generate_vr", map[string]string{"filename": filename})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "vr_"+filename, body["file"])
}

func TestListSaved(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	resp, err := http.Get(srv.URL + "/api/saved")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body["files"])

	postJSON(t, srv.URL+"/api/save", map[string]string{"dataUrl": pngDataURL(t)})
	postJSON(t, srv.URL+"/api/save", map[string]string{"dataUrl": pngDataURL(t)})

	resp2, err := http.Get(srv.URL + "/api/saved")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body))
	assert.Len(t, body["files"], 2)
	assert.True(t, body["files"][0] < body["files"][1])
}

func TestExportZip(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	_, first := postJSON(t, srv.URL+"/api/save", map[string]string{"dataUrl": pngDataURL(t)})
	_, second := postJSON(t, srv.URL+"/api/save", map[string]string{"dataUrl": pngDataURL(t)})

	resp, err := http.Get(srv.URL + "/api/export.zip")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range reader.File {
		names[f.Name] = true
	}
	assert.True(t, names[first["filename"].(string)])
	assert.True(t, names[second["filename"].(string)])
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	resp, err := http.Get(srv.URL + "/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStaticMountRejectsTraversal(t *testing.T) {
	srv := newTestServer(t, &stubEngine{})

	resp, err := http.Get(srv.URL + "/static/saved/../../etc/passwd")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}
