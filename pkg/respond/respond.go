package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

type errorBody struct {
	Error string `json:"error"`
}

func JSON(w http.ResponseWriter, r *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

// Created answers with code and points Location at the new resource.
func Created(w http.ResponseWriter, r *http.Request, code int, location string, data any) {
	w.Header().Set("Location", location)
	JSON(w, r, code, data)
}

func NoContent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Attachment sends content as a downloadable file.
func Attachment(w http.ResponseWriter, r *http.Request, name, contentType string, content []byte) error {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(content)
	return err
}

func Error(w http.ResponseWriter, r *http.Request, code int, message string) {
	JSON(w, r, code, errorBody{Error: message})
}
