package handle

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"pkm2-predict/api/internal/service"
)

// Predicter runs the prediction pipeline for one compound.
type Predicter interface {
	Predict(ctx context.Context, compound string) (service.Outcome, error)
}

type Handle struct {
	svc      Predicter
	required []string
	log      *zap.Logger
}

func New(svc Predicter, required []string, log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handle{
		svc:      svc,
		required: required,
		log:      log,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
