package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string        `json:"error"`
	Code   string        `json:"code,omitempty"`
	Errors []ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail describes one offending request parameter.
type ErrorDetail struct {
	Parameter string `json:"parameter,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Value     any    `json:"value,omitempty"`
}

// RespondWithError writes an error response in JSON format
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithErrorResponse writes a detailed error response
func RespondWithErrorResponse(w http.ResponseWriter, code int, resp ErrorResponse) {
	RespondWithJSON(w, code, resp)
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	write(w, code, response)
}

// RespondWithIndentedJSON writes a human readable JSON response
func RespondWithIndentedJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.MarshalIndent(payload, "", "  ")
	write(w, code, response)
}

func write(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
