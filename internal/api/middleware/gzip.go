package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// Gzip compresses responses for clients that accept it. Artifacts are
// returned base64 inside JSON, which compresses well.
func Gzip(next http.Handler) http.Handler {
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(1024))
	if err != nil {
		return gzhttp.GzipHandler(next)
	}
	return wrap(next)
}
