package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/models"
	"github.com/ternarybob/geoscope/internal/services/schema"
)

// SchemaHandler serves standalone schema validation, running the corrector
// pipeline with no approved entities.
type SchemaHandler struct {
	logger arbor.ILogger
}

func NewSchemaHandler(logger arbor.ILogger) *SchemaHandler {
	return &SchemaHandler{logger: logger}
}

// ValidateHandler handles POST /api/schema/validate
func (h *SchemaHandler) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.ValidateSchemaRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := schema.Validate(req.JSONLD)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON-LD: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, models.ValidateSchemaResponse{
		JSONLD:          result.JSONLD,
		Corrections:     result.Corrections,
		FlattenedSchema: result.FlattenedSchema,
	})
}
