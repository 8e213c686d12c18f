package models

// FeatureVector is a fixed-schema mapping from feature name to value for
// one bar index. Produced once per series by a feature extractor and
// shared read-only afterwards.
type FeatureVector map[string]float64

// Get returns the named feature and whether it exists in the schema.
func (v FeatureVector) Get(name string) (float64, bool) {
	x, ok := v[name]
	return x, ok
}
