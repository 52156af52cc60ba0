package webui

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var staticFS embed.FS

var allowedExtensions = map[string]bool{
	".css": true, ".js": true,
	".png": true, ".svg": true, ".ico": true,
}

// staticHandler serves the page assets compiled into the binary.
func (webUI *WebUI) staticHandler(w http.ResponseWriter, r *http.Request) {
	fileName := r.PathValue("file")

	if strings.Contains(fileName, "..") || strings.ContainsAny(fileName, `/\`) {
		webUI.Logger.Warn("path traversal attempt blocked", "path", r.URL.Path)
		http.Error(w, "Invalid file name", http.StatusBadRequest)
		return
	}
	if !allowedExtensions[strings.ToLower(path.Ext(fileName))] {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	data, err := fs.ReadFile(staticFS, path.Join("static", fileName))
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, fileName, webUI.Clock.Now(), bytes.NewReader(data))
}
