package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nick2bad4u/uptime-watcher/internal/ipc"
)

// newIPCRouter builds the HTTP surface for the IPC boundary: a POST
// invoke endpoint per registered channel and a WebSocket upgrade endpoint
// for the broadcast bridge, routed with gorilla/mux.
func newIPCRouter(registry *ipc.Registry, bridge *ipc.WebSocketBridge) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/invoke/{channel}", invokeHandler(registry)).Methods(http.MethodPost)
	r.HandleFunc("/ws", bridge.HandleUpgrade).Methods(http.MethodGet)
	return r
}

func invokeHandler(registry *ipc.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := mux.Vars(r)["channel"]

		var params map[string]any
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   map[string]string{"code": "VALIDATION_ERROR", "message": "malformed JSON body"},
				})
				return
			}
		}

		envelope := registry.Invoke(r.Context(), channel, params)

		w.Header().Set("Content-Type", "application/json")
		if !envelope.Success {
			w.WriteHeader(http.StatusBadRequest)
		}
		_ = json.NewEncoder(w).Encode(envelope)
	}
}
