package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveAssets(t *testing.T) {
	archive := ArchiveAssets([]Asset{
		{Filename: "a.png", Data: []byte("aaa")},
		{Filename: "empty.png"},
		{Filename: "b.jpg", Data: []byte("bbb")},
	})

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, reader.File, 2)

	assert.Equal(t, "a.png", reader.File[0].Name)
	assert.Equal(t, "b.jpg", reader.File[1].Name)

	rc, err := reader.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("aaa"), data)
}

func TestArchiveAssetsEmpty(t *testing.T) {
	archive := ArchiveAssets(nil)
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	assert.Empty(t, reader.File)
}
