// Package predict defines the boundary to trained classifiers.
package predict

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Predictor maps feature rows to one prediction per row. Implementations
// must not mutate the model after construction.
type Predictor interface {
	Predict(ctx context.Context, X [][]float64) ([]any, error)
}

// Schema is implemented by predictors that know their training-time columns.
type Schema interface {
	FeatureNames() []string
	NFeatures() int
}

type synchronized struct {
	mu   sync.Mutex
	next Predictor
}

// Synchronized serializes calls to p. The lock is held only for the call.
func Synchronized(p Predictor) Predictor {
	return &synchronized{next: p}
}

func (s *synchronized) Predict(ctx context.Context, X [][]float64) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Predict(ctx, X)
}

func (s *synchronized) FeatureNames() []string {
	if sc, ok := s.next.(Schema); ok {
		return sc.FeatureNames()
	}
	return nil
}

func (s *synchronized) NFeatures() int {
	if sc, ok := s.next.(Schema); ok {
		return sc.NFeatures()
	}
	return 0
}

// ResolvePath returns p unchanged when absolute; relative paths are taken
// from the directory holding the running executable.
func ResolvePath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve model path: %w", err)
	}
	if real, err := filepath.EvalSymlinks(exe); err == nil {
		exe = real
	}
	return filepath.Join(filepath.Dir(exe), p), nil
}
