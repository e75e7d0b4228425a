package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/its-tarun-2505/Trashure/blob"
	"github.com/its-tarun-2505/Trashure/utils/errors"
)

// UploadsPrefix is where in-memory blobs are served from.
const UploadsPrefix = "/uploads/"

// BlobHandler serves objects held by a blob.Memory store.
func BlobHandler(m *blob.Memory) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, UploadsPrefix)
		obj, ok := m.Get(key)
		if !ok {
			fail(w, errors.NotFound("file not found"))
			return
		}
		w.Header().Set("Content-Type", obj.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write(obj.Data)
	})
}

// PageHandler serves the built UI from dir. Unknown paths without a file
// extension fall back to index.html so client-side routes load.
func PageHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if strings.HasPrefix(clean, "/api/") {
			fail(w, errors.ErrNotFound)
			return
		}
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean))); err != nil && path.Ext(clean) == "" {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}
