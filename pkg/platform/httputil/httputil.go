package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "qrcall/pkg/domain-errors"
)

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as the standard error body. Errors that are not
// domain errors, and internal errors, never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	de, ok := dErrors.As(err)
	if !ok {
		de = dErrors.New(dErrors.CodeInternal, "internal error")
	}

	body := make(map[string]any, len(de.Details)+3)
	for k, v := range de.Details {
		body[k] = v
	}
	body["error"] = string(de.Code)
	if de.Code != dErrors.CodeInternal {
		body["error_description"] = de.Message
	}
	if de.Reason != "" {
		body["code"] = de.Reason
	}
	WriteJSON(w, de.Code.HTTPStatus(), body)
}
