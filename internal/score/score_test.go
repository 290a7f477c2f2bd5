package score

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signalsfoundry/netintent/internal/intent"
)

func inst(kind intent.Kind, pass bool) intent.Instance {
	return intent.Instance{Kind: kind, Result: intent.Result{Evaluated: true, Pass: pass}}
}

func TestCompute(t *testing.T) {
	s := Compute([]intent.Instance{
		inst(intent.I1, true),
		inst(intent.I1, false),
		inst(intent.I6, true),
		inst(intent.I6, true),
		inst(intent.I2, true),
		inst(intent.I4, false),
	})

	if want := (Accuracy{Passed: 4, Total: 6, Defined: true, Value: 4.0 / 6}); s.Overall != want {
		t.Fatalf("overall = %+v, want %+v", s.Overall, want)
	}
	want := map[intent.Category]Accuracy{
		intent.CategoryUnderlay: {Passed: 3, Total: 4, Defined: true, Value: 0.75},
		intent.CategoryIntra:    {Passed: 1, Total: 1, Defined: true, Value: 1},
		intent.CategoryInter:    {},
		intent.CategoryBGP:      {Passed: 0, Total: 1, Defined: true, Value: 0},
		intent.CategoryTE:       {},
	}
	if diff := cmp.Diff(want, s.Categories); diff != "" {
		t.Fatalf("categories mismatch (-want +got):\n%s", diff)
	}
	if got := s.Kinds[intent.I6]; got.Value != 1 || got.Total != 2 {
		t.Fatalf("I6 = %+v", got)
	}
	if s.Kinds[intent.I5].Defined {
		t.Fatalf("I5 defined without instances")
	}
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil)
	if s.Overall.Defined {
		t.Fatalf("overall defined for no instances: %+v", s.Overall)
	}
	if s.Overall.String() != "n/a" {
		t.Fatalf("String() = %q", s.Overall.String())
	}
}

func TestUnevaluatedCountsAsFailure(t *testing.T) {
	s := Compute([]intent.Instance{{Kind: intent.I2, Result: intent.Result{Pass: true}}})
	if s.Overall.Passed != 0 || s.Overall.Value != 0 {
		t.Fatalf("overall = %+v", s.Overall)
	}
}

func TestAccuracyJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Accuracy{
		"defined":   newAccuracy(1, 2),
		"undefined": {},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"defined":{"passed":1,"total":2,"value":0.5},"undefined":{"passed":0,"total":0,"value":null}}`
	if string(b) != want {
		t.Fatalf("json = %s\nwant %s", b, want)
	}

	var back map[string]Accuracy
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back["undefined"].Defined || !back["defined"].Defined {
		t.Fatalf("round trip = %+v", back)
	}
}
