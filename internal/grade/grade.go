// Package grade maps percentage scores to letter grades and gives grades an
// explicit quality ordering so "best" and "worst" queries never fall back to
// lexical string comparison.
package grade

// Grade is a letter grade for a driving score.
type Grade string

const (
	APlus Grade = "A+"
	A     Grade = "A"
	BPlus Grade = "B+"
	B     Grade = "B"
	CPlus Grade = "C+"
	C     Grade = "C"
	DPlus Grade = "D+"
	D     Grade = "D"
	F     Grade = "F"

	// Unknown is returned where no grade applies, e.g. statistics over an
	// empty trip history.
	Unknown Grade = "N/A"
)

var ranks = map[Grade]int{
	F:     1,
	D:     2,
	DPlus: 3,
	C:     4,
	CPlus: 5,
	B:     6,
	BPlus: 7,
	A:     8,
	APlus: 9,
}

// ForScore converts a 0-100 score into a letter grade.
func ForScore(score float64) Grade {
	switch {
	case score >= 95:
		return APlus
	case score >= 90:
		return A
	case score >= 85:
		return BPlus
	case score >= 80:
		return B
	case score >= 75:
		return CPlus
	case score >= 70:
		return C
	case score >= 65:
		return DPlus
	case score >= 60:
		return D
	default:
		return F
	}
}

// Rank returns the quality rank of the grade, higher is better. Unknown and
// unrecognized grades rank below F.
func (g Grade) Rank() int {
	return ranks[g]
}

// Valid reports whether g is one of the nine letter grades.
func (g Grade) Valid() bool {
	_, ok := ranks[g]
	return ok
}

// Best returns the highest-ranked grade in the list, or Unknown for an empty
// list.
func Best(grades []Grade) Grade {
	best := Unknown
	for _, g := range grades {
		if !g.Valid() {
			continue
		}
		if best == Unknown || g.Rank() > best.Rank() {
			best = g
		}
	}
	return best
}

// Worst returns the lowest-ranked grade in the list, or Unknown for an empty
// list.
func Worst(grades []Grade) Grade {
	worst := Unknown
	for _, g := range grades {
		if !g.Valid() {
			continue
		}
		if worst == Unknown || g.Rank() < worst.Rank() {
			worst = g
		}
	}
	return worst
}
