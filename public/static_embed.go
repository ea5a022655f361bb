// Package public embeds the stylesheet served under /public/static/.
package public

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var static embed.FS

// StaticFS exposes the embedded static directory.
func StaticFS() (fs.FS, error) {
	return fs.Sub(static, "static")
}

// Handler serves the embedded assets with a one-hour public cache lifetime.
// Mount it with the /public/static/ prefix stripped.
func Handler() (http.Handler, error) {
	sub, err := StaticFS()
	if err != nil {
		return nil, err
	}
	files := http.FileServer(http.FS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	}), nil
}
