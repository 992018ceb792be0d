package api

import (
	"net/http"

	"github.com/seantiz/cadence/internal/plugin"
)

// eventResponse describes one entry of the event catalog.
type eventResponse struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	keys := plugin.Keys()
	out := make([]eventResponse, len(keys))
	for i, k := range keys {
		out[i] = eventResponse{Name: k.Name(), Kind: k.Kind().String()}
	}
	s.writeJSON(w, http.StatusOK, out)
}
