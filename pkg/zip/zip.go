package zip

import (
	"archive/zip"
	"bytes"
)

// Asset is one file destined for an archive.
type Asset struct {
	Filename string
	Data     []byte
}

// ArchiveAssets bundles the assets into a single zip, preserving input
// order. Assets with no data are skipped rather than written empty.
func ArchiveAssets(assets []Asset) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, asset := range assets {
		if len(asset.Data) == 0 {
			continue
		}
		w, err := zw.Create(asset.Filename)
		if err != nil {
			continue
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil
		}
	}
	_ = zw.Close()
	return buf.Bytes()
}
