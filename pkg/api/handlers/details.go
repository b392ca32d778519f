package handlers

import "net/http"

// Details is the body of the OPTIONS discovery response.
type Details struct {
	Provider string   `json:"provider"`
	Version  string   `json:"version"`
	Features []string `json:"features"`
}

// DetailsHandler answers OPTIONS on any path with the microservice details.
func DetailsHandler(version string) http.HandlerFunc {
	details := Details{
		Provider: "ThumbnailMicroservice",
		Version:  version,
		Features: []string{},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, details)
	}
}
