package achievement

import (
	"math"

	"github.com/creatorhub/sessiond/internal/model"
)

// Result is the earned subset of the catalog for one user snapshot
type Result struct {
	EarnedBadges []Badge `json:"earnedBadges"`
	TotalPoints  int     `json:"totalPoints"`
}

// BadgeStatus is a catalog badge together with the user's standing on it
type BadgeStatus struct {
	Badge
	Earned   bool    `json:"earned"`
	Progress float64 `json:"progress"`
}

// Report is the full dashboard view: every badge with progress plus totals
type Report struct {
	Badges      []BadgeStatus `json:"badges"`
	Counters    Counters      `json:"counters"`
	EarnedCount int           `json:"earnedCount"`
	TotalPoints int           `json:"totalPoints"`
	MaxPoints   int           `json:"maxPoints"`
}

// Evaluate returns the badges the user has earned and their point total.
// A nil user earns nothing.
func Evaluate(u *model.User) Result {
	c := Normalize(u)
	earned, _ := evaluate(c)

	res := Result{EarnedBadges: []Badge{}}
	for _, b := range catalog {
		if earned[b.ID] {
			res.EarnedBadges = append(res.EarnedBadges, b)
			res.TotalPoints += b.Points
		}
	}
	return res
}

// Progress returns the user's completion of badge as a percentage in [0, 100]
func Progress(b Badge, u *model.User) float64 {
	c := Normalize(u)
	others := 0
	if b.dependent() {
		_, others = evaluate(c)
	}
	return progress(b, c, others)
}

// EvaluateReport computes earned flags and progress for the whole catalog
func EvaluateReport(u *model.User) Report {
	c := Normalize(u)
	earned, others := evaluate(c)

	r := Report{Badges: make([]BadgeStatus, 0, len(catalog)), Counters: c}
	for _, b := range catalog {
		st := BadgeStatus{Badge: b, Earned: earned[b.ID], Progress: progress(b, c, others)}
		if st.Earned {
			r.EarnedCount++
			r.TotalPoints += b.Points
		}
		r.MaxPoints += b.Points
		r.Badges = append(r.Badges, st)
	}
	return r
}

// evaluate runs the two passes: counter badges first, then badges that count
// earned badges, which see only the first pass and never themselves.
// It returns the earned set and the first-pass count.
func evaluate(c Counters) (map[string]bool, int) {
	earned := make(map[string]bool, len(catalog))
	firstPass := 0
	for _, b := range catalog {
		if b.dependent() {
			continue
		}
		if b.met(c, 0) {
			earned[b.ID] = true
			firstPass++
		}
	}
	for _, b := range catalog {
		if !b.dependent() {
			continue
		}
		if b.met(c, firstPass) {
			earned[b.ID] = true
		}
	}
	return earned, firstPass
}

func progress(b Badge, c Counters, otherEarned int) float64 {
	if b.Metric == MetricNone || b.Threshold <= 0 {
		return 0
	}
	actual := b.actual(c, otherEarned)
	if actual <= 0 {
		return 0
	}
	return math.Min(100, 100*float64(actual)/float64(b.Threshold))
}
