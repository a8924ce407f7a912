package httpadapter

import (
	"bytes"
	_ "embed"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var openapiSpec []byte

var (
	specOnce   sync.Once
	specRouter routers.Router
)

func loadSpecRouter() routers.Router {
	specOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(openapiSpec)
		if err != nil {
			slog.Error("load openapi spec", "error", err)
			return
		}
		if err := doc.Validate(loader.Context); err != nil {
			slog.Error("validate openapi spec", "error", err)
			return
		}
		router, err := legacyrouter.NewRouter(doc)
		if err != nil {
			slog.Error("build openapi router", "error", err)
			return
		}
		specRouter = router
	})
	return specRouter
}

// openAPIValidationMiddleware rejects requests whose shape violates the
// contract before they reach a handler. Paths outside the spec, like
// health probes, pass through untouched.
func openAPIValidationMiddleware(next http.Handler) http.Handler {
	router := loadSpecRouter()
	if router == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := router.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		// Validation consumed the body; hand the handler a fresh reader.
		if body != nil {
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		next.ServeHTTP(w, r)
	})
}
