// Package render пишет JSON-ответы API.
package render

import (
	"encoding/json"
	"net/http"
)

// ErrorJSONResponse - тело ответа об ошибке.
type ErrorJSONResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
	// Для insufficient_points
	Balance  *int64 `json:"balance,omitempty"`
	Required *int64 `json:"required,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(responseJSON)
}

func Error(w http.ResponseWriter, status int, reason, message string) {
	JSON(w, status, ErrorJSONResponse{OK: false, Error: reason, Message: message})
}
