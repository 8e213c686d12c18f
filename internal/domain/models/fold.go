package models

// Fold is one train/test partition of a time-ordered dataset. All ranges
// are half-open index intervals [Start, End) into the same series, already
// purged: train and test are disjoint and separated by at least Embargo
// bars on every shared boundary.
type Fold struct {
	ID         int
	TrainStart int
	TrainEnd   int
	TestStart  int
	TestEnd    int
	Embargo    int
}

// TrainLen returns the number of training bars.
func (f Fold) TrainLen() int { return f.TrainEnd - f.TrainStart }

// TestLen returns the number of test bars.
func (f Fold) TestLen() int { return f.TestEnd - f.TestStart }

// Gap returns the minimum index distance between any train bar and any
// test bar. Negative means the ranges overlap.
func (f Fold) Gap() int {
	if f.TrainEnd <= f.TestStart {
		return f.TestStart - f.TrainEnd
	}
	if f.TestEnd <= f.TrainStart {
		return f.TrainStart - f.TestEnd
	}
	return -1
}
