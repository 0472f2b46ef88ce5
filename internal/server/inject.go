package server

import (
	"net/http"
	"strings"
)

// reloadScript is the browser side of the push channel: it opens the SSE
// connection and re-fetches the page whenever a reload notification arrives.
const reloadScript = `(() => {
  if (window.__SPHINXSERVE_LR__) return;
  window.__SPHINXSERVE_LR__ = true;
  function connect(){
    const es = new EventSource('/livereload');
    es.onmessage = () => { console.log('[sphinxserve] content changed, reloading'); location.reload(); };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();`

func handleReloadScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write([]byte(reloadScript))
}

// injectReloadScript wraps a handler so HTML responses carry the live-reload
// client script. Non-HTML responses and oversized pages pass through
// untouched.
func injectReloadScript(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		isHTMLPage := path == "/" || path == "" || strings.HasSuffix(path, "/") || strings.HasSuffix(path, ".html")
		if !isHTMLPage {
			next.ServeHTTP(w, r)
			return
		}
		injector := newReloadInjector(w)
		next.ServeHTTP(injector, r)
		injector.finalize()
	})
}

// reloadInjector buffers an HTML response and inserts the script tag before
// the closing body tag. Buffering is capped so a huge page can never stall
// the response.
type reloadInjector struct {
	http.ResponseWriter
	statusCode    int
	buffer        []byte
	headerWritten bool
	passthrough   bool
	maxSize       int
}

func newReloadInjector(w http.ResponseWriter) *reloadInjector {
	return &reloadInjector{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		maxSize:        512 * 1024,
	}
}

func (l *reloadInjector) WriteHeader(code int) {
	l.statusCode = code
	if l.passthrough {
		l.ResponseWriter.WriteHeader(code)
		l.headerWritten = true
	}
}

func (l *reloadInjector) Write(data []byte) (int, error) {
	if !l.headerWritten && !l.passthrough && l.buffer == nil {
		contentType := l.ResponseWriter.Header().Get("Content-Type")
		isHTML := contentType == "" || strings.Contains(contentType, "text/html")
		if !isHTML {
			l.passthrough = true
			l.ResponseWriter.WriteHeader(l.statusCode)
			l.headerWritten = true
			return l.ResponseWriter.Write(data)
		}
		l.buffer = make([]byte, 0, 64*1024)
	}

	if l.passthrough {
		return l.ResponseWriter.Write(data)
	}

	if len(l.buffer)+len(data) > l.maxSize {
		l.passthrough = true
		l.ResponseWriter.Header().Del("Content-Length")
		l.ResponseWriter.WriteHeader(l.statusCode)
		l.headerWritten = true
		if len(l.buffer) > 0 {
			if _, err := l.ResponseWriter.Write(l.buffer); err != nil {
				return 0, err
			}
		}
		return l.ResponseWriter.Write(data)
	}

	l.buffer = append(l.buffer, data...)
	return len(data), nil
}

func (l *reloadInjector) finalize() {
	if l.passthrough || len(l.buffer) == 0 {
		if !l.headerWritten {
			l.ResponseWriter.WriteHeader(l.statusCode)
		}
		return
	}

	html := string(l.buffer)
	modified := strings.Replace(html, "</body>", `<script async src="/livereload.js"></script></body>`, 1)

	l.ResponseWriter.Header().Del("Content-Length")
	l.ResponseWriter.WriteHeader(l.statusCode)
	_, _ = l.ResponseWriter.Write([]byte(modified))
}
