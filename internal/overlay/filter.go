package overlay

import (
	"fmt"
	"net/netip"

	"github.com/signalsfoundry/netintent/model"
	"go4.org/netipx"
)

var (
	allV4 = netip.MustParsePrefix("0.0.0.0/0")
	allV6 = netip.MustParsePrefix("::/0")
)

// importFilter is the compiled permit set of a VRF's ordered import rules.
// A nil set permits everything.
type importFilter struct {
	permit *netipx.IPSet
}

// compileFilter folds first-match-wins rules into one IPSet. Rules are
// applied from last to first over a fully permitted space, so the lowest
// index covering an address is the one that sticks.
func compileFilter(rules []model.ImportFilter) (importFilter, error) {
	if len(rules) == 0 {
		return importFilter{}, nil
	}
	var b netipx.IPSetBuilder
	b.AddPrefix(allV4)
	b.AddPrefix(allV6)
	for i := len(rules) - 1; i >= 0; i-- {
		r := rules[i]
		switch r.Action {
		case model.FilterPermit:
			b.AddPrefix(r.Prefix)
		case model.FilterDeny:
			b.RemovePrefix(r.Prefix)
		default:
			return importFilter{}, fmt.Errorf("rule %d: unknown action %q", r.Index, r.Action)
		}
	}
	set, err := b.IPSet()
	if err != nil {
		return importFilter{}, err
	}
	return importFilter{permit: set}, nil
}

// Permits reports whether a host route to prefix passes the filter.
func (f importFilter) Permits(prefix netip.Prefix) bool {
	if f.permit == nil {
		return true
	}
	return f.permit.ContainsPrefix(prefix)
}
