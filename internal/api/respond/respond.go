// Package respond renders the API's JSON envelope: {data, message, errors}.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/clinicware/clinicops/internal/clinicerr"
)

// Envelope is the uniform response body.
type Envelope struct {
	Data    any                 `json:"data"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// JSON writes a success envelope with the given status code.
func JSON(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Data: data, Message: message})
}

// Error maps the error through the domain taxonomy and writes the
// envelope. Unclassified errors become opaque 500s.
func Error(w http.ResponseWriter, err error) {
	status := clinicerr.Status(err)
	env := Envelope{Message: "internal server error"}
	if domainErr, ok := clinicerr.As(err); ok {
		env.Message = domainErr.Message
		env.Errors = domainErr.Fields
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
