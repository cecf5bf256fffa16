// Package rules compiles rule conditions into expression trees and selects the
// activated rules for a measurement snapshot.
//
// Conditions are small boolean expressions over measurement field names:
//
//	pollution_level > 0.3 and pollution_level <= 0.7
//	ph_level < 6.5 or (temperature > 25 and oxygen_level < 3)
//
// They are parsed into Comparison, And and Or nodes and interpreted directly.
package rules

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrSyntax is wrapped by every parse failure.
	ErrSyntax = errors.New("condition syntax error")
	// ErrUnknownField is wrapped when a condition names a field the snapshot does not carry.
	ErrUnknownField = errors.New("unknown field")
)

// Snapshot exposes named numeric values to a condition.
type Snapshot interface {
	Value(field string) (float64, bool)
}

// Op is a relational operator.
type Op string

const (
	OpGT Op = ">"
	OpLT Op = "<"
	OpGE Op = ">="
	OpLE Op = "<="
	OpEQ Op = "=="
)

func (o Op) compare(v, threshold float64) bool {
	switch o {
	case OpGT:
		return v > threshold
	case OpLT:
		return v < threshold
	case OpGE:
		return v >= threshold
	case OpLE:
		return v <= threshold
	case OpEQ:
		return v == threshold
	}
	return false
}

// mirror returns the operator that keeps the comparison true when operands swap sides.
func (o Op) mirror() Op {
	switch o {
	case OpGT:
		return OpLT
	case OpLT:
		return OpGT
	case OpGE:
		return OpLE
	case OpLE:
		return OpGE
	}
	return o
}

// Expr is a node of a parsed condition.
type Expr interface {
	Eval(s Snapshot) (bool, error)
	String() string
	fields(out []string) []string
}

// Comparison compares one field with a constant.
type Comparison struct {
	Field     string
	Op        Op
	Threshold float64
}

func (c Comparison) Eval(s Snapshot) (bool, error) {
	v, ok := s.Value(c.Field)
	if !ok {
		return false, fmt.Errorf("%w %q", ErrUnknownField, c.Field)
	}
	return c.Op.compare(v, c.Threshold), nil
}

func (c Comparison) String() string {
	return c.Field + " " + string(c.Op) + " " + strconv.FormatFloat(c.Threshold, 'g', -1, 64)
}

func (c Comparison) fields(out []string) []string { return append(out, c.Field) }

// And is true when both sides are. The right side is skipped when the left is false.
type And struct {
	Left, Right Expr
}

func (a And) Eval(s Snapshot) (bool, error) {
	l, err := a.Left.Eval(s)
	if err != nil || !l {
		return false, err
	}
	return a.Right.Eval(s)
}

func (a And) String() string { return "(" + a.Left.String() + " and " + a.Right.String() + ")" }

func (a And) fields(out []string) []string { return a.Right.fields(a.Left.fields(out)) }

// Or is true when either side is. The right side is skipped when the left is true.
type Or struct {
	Left, Right Expr
}

func (o Or) Eval(s Snapshot) (bool, error) {
	l, err := o.Left.Eval(s)
	if err != nil {
		return false, err
	}
	if l {
		return true, nil
	}
	return o.Right.Eval(s)
}

func (o Or) String() string { return "(" + o.Left.String() + " or " + o.Right.String() + ")" }

func (o Or) fields(out []string) []string { return o.Right.fields(o.Left.fields(out)) }

// Fields returns the field names referenced by e, in source order, duplicates included.
func Fields(e Expr) []string { return e.fields(nil) }

// CheckFields verifies that every field referenced by e is in known.
// Short-circuit evaluation would otherwise hide a bad name behind a decided branch.
func CheckFields(e Expr, known []string) error {
	set := make(map[string]struct{}, len(known))
	for _, k := range known {
		set[k] = struct{}{}
	}
	for _, f := range Fields(e) {
		if _, ok := set[f]; !ok {
			return fmt.Errorf("%w %q", ErrUnknownField, f)
		}
	}
	return nil
}
