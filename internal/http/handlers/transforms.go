package handlers

import (
	"net/http"
)

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type transformRequest struct {
	Filename string `json:"filename"`
	Prompt   string `json:"prompt"`
}

// TextGenerate synthesizes a brand-new image from a text prompt.
func (a *App) TextGenerate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[promptRequest](r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "missing prompt")
		return
	}
	art, err := a.Pipeline.TextToImage(r.Context(), req.Prompt)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, artifactResponse{OK: true, Filename: art.Name, URL: art.URL})
}

// GenerateSketch renders a stored image as a pencil sketch.
func (a *App) GenerateSketch(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[transformRequest](r)
	if err != nil || req.Filename == "" {
		a.error(w, http.StatusBadRequest, "missing filename")
		return
	}
	art, err := a.Pipeline.Sketch(r.Context(), req.Filename)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, artifactResponse{OK: true, Filename: art.Name, URL: art.URL})
}

// GenerateImage restyles a stored image with the generative engine. The
// prompt is optional; a fixed default is applied when absent.
func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[transformRequest](r)
	if err != nil || req.Filename == "" {
		a.error(w, http.StatusBadRequest, "missing filename")
		return
	}
	art, err := a.Pipeline.Restyle(r.Context(), req.Filename, req.Prompt)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, artifactResponse{OK: true, Filename: art.Name, URL: art.URL})
}

type vrResponse struct {
	OK   bool   `json:"ok"`
	File string `json:"file"`
	URL  string `json:"url"`
}

// GenerateVR writes the mirrored "VR" view of a stored image. The output
// name is derived from the source name, so repeating the call overwrites
// the previous result with identical bytes.
func (a *App) GenerateVR(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[transformRequest](r)
	if err != nil || req.Filename == "" {
		a.error(w, http.StatusBadRequest, "missing filename")
		return
	}
	art, err := a.Pipeline.Mirror(r.Context(), req.Filename)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, vrResponse{OK: true, File: art.Name, URL: art.URL})
}
