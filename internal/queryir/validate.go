package queryir

import (
	"fmt"

	"github.com/roach88/perstore/internal/ir"
)

// ValidationResult lists constructs that are accepted but probably not what
// the author meant.
type ValidationResult struct {
	Warnings []string
}

// Clean reports whether validation found nothing to warn about.
func (r ValidationResult) Clean() bool {
	return len(r.Warnings) == 0
}

// Validate inspects a query for suspicious but legal constructs:
//  1. More than one limit directive (only the first is honored)
//  2. A limit under or/not (it still applies to the whole query)
//  3. maxCount given to limit (carried but not enforced)
//  4. Ordered comparison against null (never matches)
//
// Validate is a pure function with no side effects.
func Validate(q Query) ValidationResult {
	v := &validator{warnings: []string{}}
	v.validatePredicate(q.Filter, false)
	return ValidationResult{Warnings: v.warnings}
}

type validator struct {
	warnings []string
	limits   int
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validatePredicate(p Predicate, conditional bool) {
	switch pred := p.(type) {
	case nil:
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, conditional)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, true)
		}
	case Not:
		v.validatePredicate(pred.Predicate, true)
	case Limit:
		v.limits++
		if v.limits > 1 {
			v.addWarning("limit directive #%d ignored - the first limit in the query sets the window", v.limits)
		}
		if conditional {
			v.addWarning("limit inside or/not still applies to the whole query")
		}
		if pred.MaxCount != nil {
			v.addWarning("limit maxCount is not enforced")
		}
	case Compare:
		if lit, ok := pred.Value.(Literal); ok && pred.Op.Ordered() {
			if _, isNull := lit.Value.(ir.IRNull); isNull {
				v.addWarning("Field '%s' ordered against null - never matches", pred.Field)
			}
		}
	case In:
		if len(pred.Values) == 0 && !pred.Negate {
			v.addWarning("Field '%s' tested against an empty set - never matches", pred.Field)
		}
	case Contains, Exists, Call:
	default:
		v.addWarning("Unknown predicate type: %T", p)
	}
}
