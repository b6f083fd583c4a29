package domain

// Artifact describes a stored image blob. Name doubles as the public
// identifier; URL is where the bytes are served from.
type Artifact struct {
	Name string
	URL  string
}

// ImageExtensions lists the file extensions the store recognizes as images.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}
