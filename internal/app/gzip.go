package app

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
)

type (
	// gzipWriter compresses only payload types worth compressing; the
	// decision is made once the handler has set its Content-Type.
	gzipWriter struct {
		w       http.ResponseWriter
		gzw     *gzip.Writer
		decided bool
	}

	gzipReader struct {
		r   io.ReadCloser
		gzr *gzip.Reader
	}
)

func (gw *gzipWriter) Header() http.Header {
	return gw.w.Header()
}

func (gw *gzipWriter) Write(b []byte) (int, error) {
	gw.decide()
	if gw.gzw != nil {
		return gw.gzw.Write(b)
	}
	return gw.w.Write(b)
}

func (gw *gzipWriter) WriteHeader(statusCode int) {
	gw.decide()
	gw.w.WriteHeader(statusCode)
}

func (gw *gzipWriter) decide() {
	if gw.decided {
		return
	}
	gw.decided = true
	if compressibleType(gw.Header().Get("Content-Type")) {
		gw.Header().Set("Content-Encoding", "gzip")
		gw.gzw = gzip.NewWriter(gw.w)
	}
}

func (gw *gzipWriter) Close() error {
	if gw.gzw == nil {
		return nil
	}
	return gw.gzw.Close()
}

func compressibleType(contentType string) bool {
	return strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "text/plain")
}

func (gr gzipReader) Read(p []byte) (int, error) {
	return gr.gzr.Read(p)
}

func (gr gzipReader) Close() error {
	if err := gr.r.Close(); err != nil {
		return err
	}
	return gr.gzr.Close()
}

func gzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			gzr, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			r.Body = gzipReader{r: r.Body, gzr: gzr}
		}

		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		gw := &gzipWriter{w: w}
		defer gw.Close()
		next.ServeHTTP(gw, r)
	})
}
