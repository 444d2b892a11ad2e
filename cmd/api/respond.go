package main

import (
	"encoding/json"
	"net/http"

	"github.com/edumart/order-backend/internal/database"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeStoreError maps the store error taxonomy to HTTP. No kind is silently
// swallowed here; best-effort degradation happens below this layer.
func writeStoreError(w http.ResponseWriter, err error) {
	switch database.KindOf(err) {
	case database.KindNotFound:
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case database.KindValidation:
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case database.KindConflict:
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "store_failure", err.Error())
	}
}
