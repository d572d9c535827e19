package main

import (
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/hlog"
)

// spaHandler serves the built single-page app. Unknown paths without an extension
// fall back to index.html so client-side routes resolve.
type spaHandler struct {
	root string
}

func newSPAHandler(root string) *spaHandler {
	return &spaHandler{root: root}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	urlPath := path.Clean("/" + r.URL.Path)
	if strings.HasSuffix(urlPath, "/") {
		urlPath += "index.html"
	}

	name := filepath.Join(h.root, filepath.FromSlash(urlPath))
	info, err := os.Stat(name)
	switch {
	case err == nil && info.IsDir():
		name = filepath.Join(name, "index.html")
	case err != nil && path.Ext(urlPath) == "":
		name = filepath.Join(h.root, "index.html")
	case err != nil:
		http.NotFound(w, r)
		return
	}

	h.serveFile(w, r, name)
}

// serveFile prefers a precompressed .gz sibling when the client accepts gzip
func (h *spaHandler) serveFile(w http.ResponseWriter, r *http.Request, name string) {
	if ctype := mime.TypeByExtension(filepath.Ext(name)); ctype != "" {
		w.Header().Set("Content-Type", ctype)
	}

	if acceptsGzip(r) {
		if f, err := os.Open(name + ".gz"); err == nil {
			defer f.Close()
			if info, err := f.Stat(); err == nil && !info.IsDir() {
				w.Header().Set("Content-Encoding", "gzip")
				w.Header().Add("Vary", "Accept-Encoding")
				http.ServeContent(w, r, filepath.Base(name), info.ModTime(), f)
				return
			}
		}
	}

	f, err := os.Open(name)
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Str("file", name).Msg("static file not found")
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, filepath.Base(name), info.ModTime(), f)
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(enc, "gzip") {
			return true
		}
	}
	return false
}
