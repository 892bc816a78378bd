// Package ensemble evaluates voting classifiers exported as JSON.
//
// The artifact mirrors scikit-learn's fitted attributes: trees keep the
// parallel node arrays of tree_, logistic models keep coef_ and intercept_,
// and the voting wrapper keeps classes_, weights and feature_names_in_.
// Sub-estimators produce probabilities aligned with the top-level classes.
package ensemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Artifact is the serialized form of a voting classifier.
type Artifact struct {
	Kind         string      `json:"kind"`   // "voting"
	Voting       string      `json:"voting"` // "hard" | "soft"
	Weights      []float64   `json:"weights,omitempty"`
	Classes      []any       `json:"classes"`
	FeatureNames []string    `json:"feature_names,omitempty"`
	NFeatures    int         `json:"n_features,omitempty"`
	Estimators   []Estimator `json:"estimators"`
}

// Estimator is one voter: a single tree, a forest of trees, or a logistic model.
type Estimator struct {
	Kind  string `json:"kind"` // "tree" | "forest" | "logistic"
	Name  string `json:"name,omitempty"`
	Tree  *Tree  `json:"tree,omitempty"`
	Trees []Tree `json:"trees,omitempty"`

	Coef       [][]float64 `json:"coef,omitempty"`
	Intercept  []float64   `json:"intercept,omitempty"`
	MultiClass string      `json:"multi_class,omitempty"` // "multinomial" (default) | "ovr"
}

// Tree holds sklearn's tree_ arrays. A node is a leaf when ChildrenLeft is -1.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"` // per node, per class counts or fractions
}

// Load reads and validates an artifact file.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// New validates an in-memory artifact.
func New(a Artifact) (*Model, error) {
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return newModel(a), nil
}

// Decode parses and validates an artifact.
func Decode(r io.Reader) (*Model, error) {
	var a Artifact
	dec := json.NewDecoder(r)
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return New(a)
}

func (a *Artifact) validate() error {
	if a.Kind != "" && a.Kind != "voting" {
		return fmt.Errorf("unsupported kind %q", a.Kind)
	}
	switch a.Voting {
	case "", "hard", "soft":
	default:
		return fmt.Errorf("unsupported voting %q", a.Voting)
	}
	if len(a.Classes) < 2 {
		return errors.New("need at least two classes")
	}
	if len(a.Estimators) == 0 {
		return errors.New("no estimators")
	}
	if a.NFeatures == 0 {
		a.NFeatures = len(a.FeatureNames)
	}
	if a.NFeatures <= 0 {
		return errors.New("n_features is required when feature_names is empty")
	}
	if len(a.FeatureNames) > 0 && len(a.FeatureNames) != a.NFeatures {
		return fmt.Errorf("feature_names has %d entries, n_features is %d", len(a.FeatureNames), a.NFeatures)
	}
	if len(a.Weights) > 0 && len(a.Weights) != len(a.Estimators) {
		return fmt.Errorf("weights has %d entries for %d estimators", len(a.Weights), len(a.Estimators))
	}
	k := len(a.Classes)
	for i, e := range a.Estimators {
		if err := e.validate(k, a.NFeatures); err != nil {
			name := e.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return fmt.Errorf("estimator %s: %w", name, err)
		}
	}
	return nil
}

func (e *Estimator) validate(k, nFeatures int) error {
	switch e.Kind {
	case "tree":
		if e.Tree == nil {
			return errors.New("tree is missing")
		}
		return e.Tree.validate(k, nFeatures)
	case "forest":
		if len(e.Trees) == 0 {
			return errors.New("forest has no trees")
		}
		for i := range e.Trees {
			if err := e.Trees[i].validate(k, nFeatures); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
		}
		return nil
	case "logistic":
		rows := len(e.Coef)
		if k == 2 && rows != 1 && rows != 2 {
			return fmt.Errorf("binary coef needs 1 or 2 rows, got %d", rows)
		}
		if k > 2 && rows != k {
			return fmt.Errorf("coef has %d rows for %d classes", rows, k)
		}
		if len(e.Intercept) != rows {
			return fmt.Errorf("intercept has %d entries for %d coef rows", len(e.Intercept), rows)
		}
		for i, row := range e.Coef {
			if len(row) != nFeatures {
				return fmt.Errorf("coef row %d has %d entries, want %d", i, len(row), nFeatures)
			}
		}
		switch e.MultiClass {
		case "", "multinomial", "ovr":
		default:
			return fmt.Errorf("unsupported multi_class %q", e.MultiClass)
		}
		return nil
	default:
		return fmt.Errorf("unsupported estimator kind %q", e.Kind)
	}
}

func (t *Tree) validate(k, nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		if len(t.Value[i]) != k {
			return fmt.Errorf("node %d value has %d classes, want %d", i, len(t.Value[i]), k)
		}
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leaf {
			continue
		}
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d has invalid children (%d, %d)", i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, f, nFeatures)
		}
	}
	return nil
}
