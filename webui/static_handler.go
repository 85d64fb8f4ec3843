package webui

import (
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"syncmonitor/webui/static"
)

// StaticAssetHandler serves the embedded dashboard assets.
type StaticAssetHandler struct {
	fs          fs.FS
	prefix      string
	cacheMaxAge int
}

// StaticAssetConfig configures the StaticAssetHandler.
type StaticAssetConfig struct {
	// Prefix is stripped from the request path (default: "/static")
	Prefix string

	// CacheMaxAge is the Cache-Control max-age in seconds; 0 disables
	// caching, which is what DevMode uses
	CacheMaxAge int
}

// NewStaticAssetHandler serves the embedded assets.
func NewStaticAssetHandler(config StaticAssetConfig) *StaticAssetHandler {
	return NewStaticAssetHandlerWithFS(static.FS(), config)
}

// NewStaticAssetHandlerWithFS serves assets from fsys.
func NewStaticAssetHandlerWithFS(fsys fs.FS, config StaticAssetConfig) *StaticAssetHandler {
	if config.Prefix == "" {
		config.Prefix = "/static"
	}
	return &StaticAssetHandler{
		fs:          fsys,
		prefix:      config.Prefix,
		cacheMaxAge: config.CacheMaxAge,
	}
}

func (h *StaticAssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, h.prefix)
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" {
		name = "index.html"
	}

	data, err := fs.ReadFile(h.fs, name)
	if err != nil {
		// directories and missing files alike
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType(name))
	if h.cacheMaxAge > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(h.cacheMaxAge))
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(data)
	}
}

// contentType maps an asset name to its MIME type.
func contentType(name string) string {
	switch path.Ext(name) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
