package routing

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"sort"
	"strings"
)

// Router serves exact paths only. The classifier supplies the route class for
// unregistered paths so 404s still get the right envelope shape.
type Router struct {
	classifier *Classifier
	paths      map[string]*pathRoutes
}

type pathRoutes struct {
	rc       RouteClass
	byMethod map[string]http.Handler
}

func NewRouter(classifier *Classifier) *Router {
	return &Router{
		classifier: classifier,
		paths:      make(map[string]*pathRoutes),
	}
}

func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	pr, ok := r.paths[path]
	if !ok {
		pr = &pathRoutes{rc: rc, byMethod: make(map[string]http.Handler)}
		r.paths[path] = pr
	}
	pr.byMethod[method] = recoverWrap(rc, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	pr, ok := r.paths[req.URL.Path]
	if !ok {
		WriteError(w, req, r.classifier.Classify(req.URL.Path), http.StatusNotFound, "not_found", "not found")
		return
	}
	h, ok := pr.byMethod[req.Method]
	if !ok {
		w.Header().Set("Allow", strings.Join(sortedMethods(pr.byMethod), ", "))
		WriteError(w, req, pr.rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	h.ServeHTTP(w, req)
}

func recoverWrap(rc RouteClass, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Default().Error("handler panic",
					"path", req.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				WriteError(w, req, rc, http.StatusInternalServerError, "internal_error", "internal error")
			}
		}()
		h.ServeHTTP(w, req)
	})
}

func sortedMethods(byMethod map[string]http.Handler) []string {
	out := make([]string, 0, len(byMethod))
	for m := range byMethod {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
