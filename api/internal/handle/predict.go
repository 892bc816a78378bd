package handle

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pkm2-predict/api/internal/apperr"
)

const maxBodyBytes = 1 << 20

type PredictRequest struct {
	// Raw so that a missing, null or non-string value degrades to "".
	Compound json.RawMessage `json:"compound"`
}

// CompoundString returns the compound as a string, or "" when it is not one.
func (r PredictRequest) CompoundString() string {
	var s string
	if len(r.Compound) == 0 || json.Unmarshal(r.Compound, &s) != nil {
		return ""
	}
	return s
}

type PredictResponse struct {
	Prediction any `json:"prediction"`
}

func (h *Handle) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req PredictRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	compound := req.CompoundString()

	start := time.Now()
	out, err := h.svc.Predict(r.Context(), compound)
	if err != nil {
		h.log.Info("prediction failed",
			zap.String("compound", compound),
			zap.String("code", string(apperr.CodeOf(err))),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.Info("prediction",
		zap.String("compound", compound),
		zap.Any("prediction", out.Prediction),
		zap.Int("missing", len(out.Missing)),
		zap.Duration("duration", time.Since(start)))
	writeJSON(w, http.StatusOK, PredictResponse{Prediction: out.Prediction})
}
