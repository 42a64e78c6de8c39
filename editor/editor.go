// Package editor serves the embedded single-page category manager.
package editor

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed dist/*
var assets embed.FS

var mimeTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

// Handler serves files from dist/ and falls back to index.html for unknown
// paths. The page itself is never cached so a redeploy is picked up at once.
func Handler() http.Handler {
	distFS, _ := fs.Sub(assets, "dist")
	fileServer := http.FileServer(http.FS(distFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqPath := strings.TrimPrefix(r.URL.Path, "/")
		if reqPath == "" {
			reqPath = "index.html"
		}

		if _, err := fs.Stat(distFS, reqPath); err != nil {
			r.URL.Path = "/"
			reqPath = "index.html"
		}

		if mime, ok := mimeTypes[path.Ext(reqPath)]; ok {
			w.Header().Set("Content-Type", mime)
		}
		if reqPath == "index.html" {
			w.Header().Set("Cache-Control", "no-cache")
		}

		fileServer.ServeHTTP(w, r)
	})
}
