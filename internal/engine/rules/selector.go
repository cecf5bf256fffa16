package rules

import (
	"fmt"
	"sort"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
)

// ConditionError reports a rule whose condition could not be compiled or evaluated.
// The rule counts as not activated.
type ConditionError struct {
	RuleID   int64
	RuleName string
	Err      error
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("rule %d (%s): %v", e.RuleID, e.RuleName, e.Err)
}

func (e *ConditionError) Unwrap() error { return e.Err }

type compiledRule struct {
	rule  entities.Rule
	order int
	expr  Expr
	err   error // compile failure, reported on every evaluation
}

// Selector evaluates a fixed rule set. It is safe for concurrent use.
type Selector struct {
	rules []compiledRule
}

// NewSelector compiles every rule once. Rules whose condition does not parse,
// or names a field outside entities.Fields, are kept and reported as errors
// whenever the selector runs.
func NewSelector(rs []entities.Rule) *Selector {
	known := entities.Fields()
	compiled := make([]compiledRule, 0, len(rs))
	for i, r := range rs {
		c := compiledRule{rule: r, order: i}
		c.expr, c.err = Parse(r.Condition)
		if c.err == nil {
			c.err = CheckFields(c.expr, known)
		}
		compiled = append(compiled, c)
	}
	return &Selector{rules: compiled}
}

// Len returns the number of rules, including those that failed to compile.
func (s *Selector) Len() int { return len(s.rules) }

// Result is the outcome of evaluating every rule against one snapshot.
type Result struct {
	// Activated is sorted by ascending priority, ties kept in load order.
	Activated []entities.Rule
	Errors    []*ConditionError
}

// Decision returns the most urgent activated rule. ok is false when none matched.
func (r Result) Decision() (rule entities.Rule, ok bool) {
	if len(r.Activated) == 0 {
		return entities.Rule{}, false
	}
	return r.Activated[0], true
}

// Evaluate runs every rule against snap. A failing condition never aborts the
// evaluation of the remaining rules.
func (s *Selector) Evaluate(snap Snapshot) Result {
	var res Result
	type hit struct {
		rule  entities.Rule
		order int
	}
	var hits []hit
	for _, c := range s.rules {
		if c.err != nil {
			res.Errors = append(res.Errors, &ConditionError{RuleID: c.rule.ID, RuleName: c.rule.Name, Err: c.err})
			continue
		}
		ok, err := c.expr.Eval(snap)
		if err != nil {
			res.Errors = append(res.Errors, &ConditionError{RuleID: c.rule.ID, RuleName: c.rule.Name, Err: err})
			continue
		}
		if ok {
			hits = append(hits, hit{rule: c.rule, order: c.order})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rule.Priority != hits[j].rule.Priority {
			return hits[i].rule.Priority < hits[j].rule.Priority
		}
		return hits[i].order < hits[j].order
	})
	res.Activated = make([]entities.Rule, 0, len(hits))
	for _, h := range hits {
		res.Activated = append(res.Activated, h.rule)
	}
	return res
}
