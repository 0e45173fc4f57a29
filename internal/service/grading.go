package service

import (
	"fmt"
	"math"
)

// Grading policy: pure functions over validated component scores. The scale is
// fixed school policy, not configuration.

const (
	MaxCA   = 20.0
	MaxExam = 60.0
)

// GradeFor maps a total in [0,100] to its letter grade. Boundaries are
// inclusive lower bounds.
func GradeFor(total float64) string {
	switch {
	case total >= 80:
		return "A"
	case total >= 70:
		return "B"
	case total >= 60:
		return "C"
	case total >= 50:
		return "D"
	case total >= 40:
		return "E"
	default:
		return "F"
	}
}

var gradeRemarks = map[string]string{
	"A": "Excellent",
	"B": "Very Good",
	"C": "Good",
	"D": "Fair",
	"E": "Pass",
	"F": "Fail",
}

func RemarkFor(grade string) string {
	return gradeRemarks[grade]
}

type ClassStats struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// ComputeClassStats aggregates a cohort's totals. An empty cohort yields the
// zero value rather than an error.
func ComputeClassStats(totals []float64) ClassStats {
	if len(totals) == 0 {
		return ClassStats{}
	}
	sum := 0.0
	min := totals[0]
	max := totals[0]
	for _, t := range totals {
		sum += t
		if t < min {
			min = t
		}
		if t > max {
			max = t
		}
	}
	return ClassStats{
		Average: Round2(sum / float64(len(totals))),
		Min:     min,
		Max:     max,
	}
}

// ValidateComponents range-checks the three raw components. It returns one
// message per violation and performs no cross-field checks.
func ValidateComponents(ca1, ca2, exam float64) []string {
	var errs []string
	if ca1 < 0 || ca1 > MaxCA {
		errs = append(errs, fmt.Sprintf("ca1 must be between 0 and %.0f, got %v", MaxCA, ca1))
	}
	if ca2 < 0 || ca2 > MaxCA {
		errs = append(errs, fmt.Sprintf("ca2 must be between 0 and %.0f, got %v", MaxCA, ca2))
	}
	if exam < 0 || exam > MaxExam {
		errs = append(errs, fmt.Sprintf("exam must be between 0 and %.0f, got %v", MaxExam, exam))
	}
	return errs
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rank assigns standard competition ranks to averages: equal values share a
// rank and the next distinct value skips accordingly (1, 2, 2, 4). Comparison
// happens on 2-decimal rounded values, matching what reports display.
func Rank(averages []float64) []int {
	ranks := make([]int, len(averages))
	for i, a := range averages {
		ra := Round2(a)
		rank := 1
		for j, b := range averages {
			if j == i {
				continue
			}
			if Round2(b) > ra {
				rank++
			}
		}
		ranks[i] = rank
	}
	return ranks
}
