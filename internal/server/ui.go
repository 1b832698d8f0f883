package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

var dashboardFS fs.FS

// SetUI installs the dashboard assets. Call it before New.
func SetUI(fsys fs.FS) {
	dashboardFS = fsys
}

// dashboardHandler serves the dashboard assets. Unknown paths without an
// extension get index.html so links into the page keep working; unknown
// assets are a 404.
func dashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dashboardFS == nil {
			http.Error(w, "dashboard not embedded in this build", http.StatusNotFound)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}
		if _, err := fs.Stat(dashboardFS, name); err != nil {
			if path.Ext(name) != "" {
				http.NotFound(w, r)
				return
			}
			name = "index.html"
		}
		if name == "index.html" {
			w.Header().Set("Cache-Control", "no-cache")
		}
		http.ServeFileFS(w, r, dashboardFS, name)
	}
}
