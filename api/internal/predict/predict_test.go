package predict

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// racyPredictor fails the test if two calls overlap.
type racyPredictor struct {
	mu     sync.Mutex
	inside bool
	t      *testing.T
}

func (p *racyPredictor) Predict(_ context.Context, X [][]float64) ([]any, error) {
	p.mu.Lock()
	if p.inside {
		p.t.Error("concurrent Predict call")
	}
	p.inside = true
	p.mu.Unlock()

	out := make([]any, len(X))
	for i := range X {
		out[i] = X[i][0]
	}

	p.mu.Lock()
	p.inside = false
	p.mu.Unlock()
	return out, nil
}

func (p *racyPredictor) FeatureNames() []string { return []string{"nN"} }
func (p *racyPredictor) NFeatures() int         { return 1 }

func TestSynchronizedSerializesCalls(t *testing.T) {
	p := Synchronized(&racyPredictor{t: t})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			out, err := p.Predict(context.Background(), [][]float64{{v}})
			assert.NoError(t, err)
			assert.Equal(t, []any{v}, out)
		}(float64(i))
	}
	wg.Wait()

	sc, ok := p.(Schema)
	require.True(t, ok)
	assert.Equal(t, []string{"nN"}, sc.FeatureNames())
	assert.Equal(t, 1, sc.NFeatures())
}

func TestResolvePath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "model.json")
	got, err := ResolvePath(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)

	exe, err := os.Executable()
	require.NoError(t, err)
	if real, err := filepath.EvalSymlinks(exe); err == nil {
		exe = real
	}
	got, err = ResolvePath("pipeline_voting.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(exe), "pipeline_voting.json"), got)
}
