package core

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownNode         = errors.New("reference to undeclared node")
	ErrUnknownVPN          = errors.New("reference to undeclared VPN")
	ErrDuplicateNode       = errors.New("node already declared")
	ErrDuplicateVPN        = errors.New("VPN already declared")
	ErrDuplicateLoopback   = errors.New("loopback address already in use")
	ErrDuplicateSID        = errors.New("SID already in use")
	ErrDuplicateAttachment = errors.New("CE already attached")
	ErrDuplicateLink       = errors.New("link direction declared twice")
	ErrDuplicateVRF        = errors.New("VRF already declared on PE")
	ErrDuplicatePolicy     = errors.New("TE policy already declared for destination and color")
	ErrDuplicateTunnel     = errors.New("tunnel already declared for PE pair and color")
	ErrDuplicateRoute      = errors.New("static route already declared for destination")
	ErrCEMultiVPN          = errors.New("CE attached to more than one VPN")
	ErrEmptyVPN            = errors.New("VPN has no member CEs")
	ErrRoleMismatch        = errors.New("node has the wrong role")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidPrefix       = errors.New("invalid prefix")
	ErrInvalidState        = errors.New("invalid link state")
	ErrInvalidAction       = errors.New("invalid filter action")
	ErrInvalidMetric       = errors.New("invalid link metric")
	ErrSelfLink            = errors.New("both endpoints are the same node")
	ErrMissingField        = errors.New("required field is empty")
)

// StructuralError reports a malformed or inconsistent descriptor entry. It is
// fatal for the topology instance: no intent is evaluated once one is seen.
type StructuralError struct {
	Descriptor string // overlay, tunnel, underlay, parameter_list, config
	Index      int    // entry index within the descriptor, -1 when not applicable
	Field      string
	Value      string
	Err        error
}

func (e *StructuralError) Error() string {
	loc := e.Descriptor
	if e.Index >= 0 {
		loc = fmt.Sprintf("%s[%d]", loc, e.Index)
	}
	if e.Field != "" {
		loc += "." + e.Field
	}
	if e.Value != "" {
		return fmt.Sprintf("%s %q: %v", loc, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: %v", loc, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// StructuralErrors flattens err, which may be wrapped or joined, into its
// StructuralErrors in reporting order.
func StructuralErrors(err error) []*StructuralError {
	var out []*StructuralError
	var walk func(error)
	walk = func(e error) {
		switch x := e.(type) {
		case nil:
		case *StructuralError:
			out = append(out, x)
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(x.Unwrap())
		}
	}
	walk(err)
	return out
}

// IsStructural reports whether err carries at least one StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// problems accumulates structural errors while a topology is built.
type problems struct {
	errs []error
}

func (p *problems) add(descriptor string, index int, field, value string, err error) {
	p.errs = append(p.errs, &StructuralError{
		Descriptor: descriptor,
		Index:      index,
		Field:      field,
		Value:      value,
		Err:        err,
	})
}

func (p *problems) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return errors.Join(p.errs...)
}
