// Package features projects descriptor mappings onto the model's column order.
package features

import "pkm2-predict/api/internal/descriptor"

// DefaultValue fills any required descriptor the provider did not produce.
// Missing descriptors are not an error: the compound still gets a prediction,
// computed with 0.0 in that column. Changing this needs a product decision.
const DefaultValue = 0.0

// Required is the ordered column schema of the PKM2 voting classifier.
// Callers must not mutate it.
var Required = []string{
	"nN", "nX", "AATS2i", "nBondsD", "nBondsD2", "C1SP2", "C3SP2", "SCH-5",
	"nHssNH", "ndssC", "nssNH", "SdssC", "SdS", "mindO", "mindS", "minssS",
	"maxdssC", "ETA_dAlpha_B", "MDEN-23", "n5Ring", "nT5Ring", "nHeteroRing",
	"n5HeteroRing", "nT5HeteroRing", "SRW5", "SRW7", "SRW9", "WTPT-5",
}

// Assemble returns a vector where position i holds m[required[i]], or
// DefaultValue when absent. Values are copied as-is, NaN and Inf included.
func Assemble(m descriptor.Mapping, required []string) []float64 {
	out := make([]float64, len(required))
	for i, name := range required {
		if v, ok := m[name]; ok {
			out[i] = v
		} else {
			out[i] = DefaultValue
		}
	}
	return out
}

// Missing lists the required names absent from m, in schema order.
func Missing(m descriptor.Mapping, required []string) []string {
	var out []string
	for _, name := range required {
		if _, ok := m[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Equal reports whether two schemas have the same names in the same order.
func Equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
