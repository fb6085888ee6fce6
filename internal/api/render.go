package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"
)

// wantsMsgpack reports whether the client asked for a msgpack body
func wantsMsgpack(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "msgpack") {
		return true
	}
	accept := strings.ToLower(r.Header.Get("Accept"))
	return strings.Contains(accept, "application/msgpack") || strings.Contains(accept, "application/x-msgpack")
}

// Write encodes data as msgpack or JSON depending on the request
func Write(w http.ResponseWriter, r *http.Request, status int, data any) {
	if !wantsMsgpack(r) {
		WriteJSON(w, status, data)
		return
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetOmitEmpty(true)
	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.Header().Set("Vary", "Accept")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError sends {"error": msg} in the negotiated encoding
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	Write(w, r, status, map[string]string{"error": msg})
}
