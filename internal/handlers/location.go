package handlers

import (
	"net/http"

	"github.com/ub-detected/football-bot/internal/locations"
)

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"locations": locations.All()})
}

func (s *Server) handleLocationSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	results := locations.Search(query)
	if results == nil {
		results = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"locations": results})
}
