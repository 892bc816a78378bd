package handle

import "net/http"

type DescriptorsResponse struct {
	Descriptors []string `json:"descriptors"`
	Count       int      `json:"count"`
}

// Descriptors lists the model's input columns in order.
func (h *Handle) Descriptors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	writeJSON(w, http.StatusOK, DescriptorsResponse{Descriptors: h.required, Count: len(h.required)})
}
