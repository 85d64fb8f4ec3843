// Package static embeds the dashboard's HTML, CSS and JavaScript.
package static

import (
	"embed"
	"io/fs"
)

//go:embed index.html css js
var files embed.FS

// FS returns the embedded dashboard assets.
func FS() fs.FS {
	return files
}

// ReadFile reads one embedded asset.
func ReadFile(name string) ([]byte, error) {
	return files.ReadFile(name)
}
