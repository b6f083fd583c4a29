package handlers

import (
	"fmt"
	"net/http"
	"time"

	"server/pkg/zip"
)

type saveRequest struct {
	DataURL string `json:"dataUrl"`
}

type deleteRequest struct {
	Filename string `json:"filename"`
}

// Save decodes a base64 data URL from the client (camera capture, canvas
// drawing, upload) and stores it as a new artifact.
func (a *App) Save(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[saveRequest](r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "missing dataUrl")
		return
	}
	if req.DataURL == "" {
		a.error(w, http.StatusBadRequest, "missing dataUrl")
		return
	}
	art, err := a.Pipeline.SaveRaw(r.Context(), req.DataURL)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, artifactResponse{OK: true, Filename: art.Name, URL: art.URL})
}

// Delete removes a stored artifact by filename.
func (a *App) Delete(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[deleteRequest](r)
	if err != nil || req.Filename == "" {
		a.error(w, http.StatusBadRequest, "missing filename")
		return
	}
	if err := a.Pipeline.Delete(r.Context(), req.Filename); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true})
}

// ListSaved returns the saved artifact names in lexicographic order.
func (a *App) ListSaved(w http.ResponseWriter, r *http.Request) {
	files, err := a.Pipeline.List(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	a.json(w, http.StatusOK, map[string]any{"files": files})
}

// ExportZip streams every saved artifact as a single zip archive.
func (a *App) ExportZip(w http.ResponseWriter, r *http.Request) {
	files, err := a.Pipeline.List(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	assets := make([]zip.Asset, 0, len(files))
	for _, name := range files {
		data, err := a.Saved.Get(r.Context(), name)
		if err != nil {
			continue
		}
		assets = append(assets, zip.Asset{Filename: name, Data: data})
	}
	archive := zip.ArchiveAssets(assets)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=saved-%s.zip", time.Now().Format("20060102-150405")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
