package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var errMissingData = errors.New(`missing media: send "data" as base64 or an application/octet-stream body`)

type APIError struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

func writeBodyError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &maxErr):
		writeJSONError(w, "request body exceeds maximum allowed size", http.StatusRequestEntityTooLarge)
	case errors.Is(err, errMissingData):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		writeJSONError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
	default:
		writeJSONError(w, "failed to read request body: "+err.Error(), http.StatusBadRequest)
	}
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	return err == nil && v
}

func validationErrorsToMap(err error) map[string]string {
	errs := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			field := e.Field()
			switch e.Tag() {
			case "required":
				errs[field] = "is required"
			case "max":
				errs[field] = "exceeds maximum length"
			case "http_url":
				errs[field] = "must be an http(s) URL"
			default:
				errs[field] = "invalid value"
			}
		}
	} else {
		errs["error"] = err.Error()
	}
	return errs
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(APIError{
		Error: message,
		Code:  code,
	})
}
