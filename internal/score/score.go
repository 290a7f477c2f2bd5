// Package score aggregates intent verdicts into accuracy figures.
package score

import (
	"encoding/json"
	"fmt"

	"github.com/signalsfoundry/netintent/internal/intent"
)

// Accuracy is the pass ratio of a set of instances. An empty set has no
// accuracy: Defined is false and the value serialises as null.
type Accuracy struct {
	Passed  int
	Total   int
	Defined bool
	Value   float64
}

func newAccuracy(passed, total int) Accuracy {
	if total == 0 {
		return Accuracy{}
	}
	return Accuracy{Passed: passed, Total: total, Defined: true, Value: float64(passed) / float64(total)}
}

type accuracyJSON struct {
	Passed int      `json:"passed"`
	Total  int      `json:"total"`
	Value  *float64 `json:"value"`
}

func (a Accuracy) MarshalJSON() ([]byte, error) {
	out := accuracyJSON{Passed: a.Passed, Total: a.Total}
	if a.Defined {
		v := a.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

func (a *Accuracy) UnmarshalJSON(b []byte) error {
	var in accuracyJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*a = Accuracy{Passed: in.Passed, Total: in.Total}
	if in.Value != nil {
		a.Defined = true
		a.Value = *in.Value
	}
	return nil
}

// String renders the ratio, or "n/a" when undefined.
func (a Accuracy) String() string {
	if !a.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%.4f (%d/%d)", a.Value, a.Passed, a.Total)
}

// Summary holds overall, per-category and per-kind accuracy. Every category
// and kind is present, undefined when it had no instances.
type Summary struct {
	Overall    Accuracy                     `json:"overall"`
	Categories map[intent.Category]Accuracy `json:"categories"`
	Kinds      map[intent.Kind]Accuracy     `json:"kinds"`
}

// Compute aggregates evaluated instances. Unevaluated instances count as
// failures. There is no partial credit.
func Compute(instances []intent.Instance) Summary {
	type tally struct{ passed, total int }
	var overall tally
	byCat := make(map[intent.Category]*tally)
	byKind := make(map[intent.Kind]*tally)
	for _, c := range intent.Categories() {
		byCat[c] = &tally{}
	}
	for _, k := range intent.Kinds() {
		byKind[k] = &tally{}
	}

	for _, in := range instances {
		pass := in.Result.Evaluated && in.Result.Pass
		for _, t := range []*tally{&overall, byCat[in.Category()], byKind[in.Kind]} {
			if t == nil {
				continue
			}
			t.total++
			if pass {
				t.passed++
			}
		}
	}

	s := Summary{
		Overall:    newAccuracy(overall.passed, overall.total),
		Categories: make(map[intent.Category]Accuracy, len(byCat)),
		Kinds:      make(map[intent.Kind]Accuracy, len(byKind)),
	}
	for c, t := range byCat {
		s.Categories[c] = newAccuracy(t.passed, t.total)
	}
	for k, t := range byKind {
		s.Kinds[k] = newAccuracy(t.passed, t.total)
	}
	return s
}
