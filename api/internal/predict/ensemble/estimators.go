package ensemble

import "math"

const leaf = -1

// proba walks the tree for x and returns the normalized leaf distribution.
// Inputs are rounded to float32 before the split test, as the trees were fit.
func (t *Tree) proba(x []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if float64(float32(x[t.Feature[node]])) <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return normalize(t.Value[node])
}

func (e *Estimator) proba(x []float64, k int) []float64 {
	switch e.Kind {
	case "tree":
		return e.Tree.proba(x)
	case "forest":
		sum := make([]float64, k)
		for i := range e.Trees {
			for c, p := range e.Trees[i].proba(x) {
				sum[c] += p
			}
		}
		for c := range sum {
			sum[c] /= float64(len(e.Trees))
		}
		return sum
	default:
		return e.logisticProba(x, k)
	}
}

func (e *Estimator) logisticProba(x []float64, k int) []float64 {
	scores := make([]float64, len(e.Coef))
	for i, w := range e.Coef {
		z := e.Intercept[i]
		for j, wj := range w {
			z += wj * x[j]
		}
		scores[i] = z
	}
	if len(scores) == 1 {
		p := sigmoid(scores[0])
		return []float64{1 - p, p}
	}
	if e.MultiClass == "ovr" {
		out := make([]float64, k)
		for i, z := range scores {
			out[i] = sigmoid(z)
		}
		return normalize(out)
	}
	return softmax(scores)
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func softmax(z []float64) []float64 {
	maxZ := math.Inf(-1)
	for _, v := range z {
		if v > maxZ {
			maxZ = v
		}
	}
	out := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - maxZ)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum == 0 {
		for i := range out {
			out[i] = 1.0 / float64(len(out))
		}
		return out
	}
	for i, x := range v {
		out[i] = x / sum
	}
	return out
}

// argmax returns the first index of the largest value.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
