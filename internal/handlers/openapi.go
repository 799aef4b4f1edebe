package handlers

import (
	_ "embed"
	"encoding/json"
	"net/http"

	"github.com/benvon/drinks-api/internal/response"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// OpenAPIHandler serves the API description as YAML and JSON
type OpenAPIHandler struct {
	document []byte
	logger   *zap.Logger
}

// NewOpenAPIHandler creates a new OpenAPI handler for the embedded document
func NewOpenAPIHandler(log *zap.Logger) *OpenAPIHandler {
	return newOpenAPIHandler(openAPIDocument, log)
}

func newOpenAPIHandler(document []byte, log *zap.Logger) *OpenAPIHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenAPIHandler{document: document, logger: log}
}

// RegisterRoutes registers OpenAPI routes
func (h *OpenAPIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/openapi.yaml", h.ServeYAML).Methods(http.MethodGet)
	r.HandleFunc("/openapi.json", h.ServeJSON).Methods(http.MethodGet)
}

// ServeYAML serves the OpenAPI document in YAML format
func (h *OpenAPIHandler) ServeYAML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(h.document); err != nil {
		h.logger.Debug("openapi_write_failed", zap.Error(err))
	}
}

// ServeJSON serves the OpenAPI document converted to JSON
func (h *OpenAPIHandler) ServeJSON(w http.ResponseWriter, _ *http.Request) {
	var doc map[string]any
	if err := yaml.Unmarshal(h.document, &doc); err != nil {
		h.logger.Error("openapi_parse_failed", zap.Error(err))
		response.WriteStatus(w, http.StatusInternalServerError)
		return
	}

	data, err := json.Marshal(doc)
	if err != nil {
		h.logger.Error("openapi_encode_failed", zap.Error(err))
		response.WriteStatus(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("openapi_write_failed", zap.Error(err))
	}
}
