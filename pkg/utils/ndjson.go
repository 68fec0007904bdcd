package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// SetupNDJSONHeaders prepares a newline-delimited JSON event stream response.
func SetupNDJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// SendNDJSON writes one event line and flushes it to the client.
func SendNDJSON(w http.ResponseWriter, flusher http.Flusher, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal ndjson payload: %v", err)
		return
	}
	if _, err := w.Write(data); err != nil {
		log.Printf("failed to write ndjson payload: %v", err)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Printf("failed to write ndjson terminator: %v", err)
		return
	}
	flusher.Flush()
}
