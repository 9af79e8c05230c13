package model

import "math"

// MalignantThreshold is the decision boundary; a score must be strictly
// greater to be classified malignant.
const MalignantThreshold = 0.5

// Interpret turns the probability of malignancy into a Verdict.
func Interpret(score float64) Verdict {
	if score > MalignantThreshold {
		return Verdict{Status: StatusMalignant, Confidence: round2(score * 100), Raw: score}
	}
	return Verdict{Status: StatusBenign, Confidence: round2((1 - score) * 100), Raw: score}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
