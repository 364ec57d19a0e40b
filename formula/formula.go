// Package formula is the reference solver used by the propositional
// engines: boolean formulas written in Starlark expression syntax over
// propositional variables, decided by enumerating assignments.
//
// Supported syntax: identifiers, True, False, not, and, or, ==, != and
// parentheses.
package formula

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/syntax"
)

// Formula is an immutable parsed formula.
type Formula interface {
	// String renders the formula in a form Parse accepts.
	String() string
	// Vars lists the free variables in sorted order.
	Vars() []string
}

// Solver is what workers need from the formula layer.
type Solver interface {
	Parse(text string) (Formula, error)
	IsUnsatisfiable(f Formula) (bool, error)
}

type expr struct {
	node syntax.Expr
	text string
	vars []string
}

func (e *expr) String() string { return e.text }
func (e *expr) Vars() []string { return e.vars }

func newExpr(node syntax.Expr) (*expr, error) {
	seen := make(map[string]bool)
	if err := collectVars(node, seen); err != nil {
		return nil, err
	}
	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	var b strings.Builder
	format(&b, node)
	return &expr{node: node, text: b.String(), vars: vars}, nil
}

func collectVars(node syntax.Expr, seen map[string]bool) error {
	switch v := node.(type) {
	case *syntax.Ident:
		if v.Name != "True" && v.Name != "False" {
			seen[v.Name] = true
		}
		return nil
	case *syntax.ParenExpr:
		return collectVars(v.X, seen)
	case *syntax.UnaryExpr:
		if v.Op != syntax.NOT {
			return fmt.Errorf("unsupported unary operator %s", v.Op)
		}
		return collectVars(v.X, seen)
	case *syntax.BinaryExpr:
		switch v.Op {
		case syntax.AND, syntax.OR, syntax.EQL, syntax.NEQ:
		default:
			return fmt.Errorf("unsupported binary operator %s", v.Op)
		}
		if err := collectVars(v.X, seen); err != nil {
			return err
		}
		return collectVars(v.Y, seen)
	default:
		return fmt.Errorf("unsupported expression %T", node)
	}
}

func eval(node syntax.Expr, env map[string]bool) bool {
	switch v := node.(type) {
	case *syntax.Ident:
		switch v.Name {
		case "True":
			return true
		case "False":
			return false
		}
		return env[v.Name]
	case *syntax.ParenExpr:
		return eval(v.X, env)
	case *syntax.UnaryExpr:
		return !eval(v.X, env)
	case *syntax.BinaryExpr:
		switch v.Op {
		case syntax.AND:
			return eval(v.X, env) && eval(v.Y, env)
		case syntax.OR:
			return eval(v.X, env) || eval(v.Y, env)
		case syntax.EQL:
			return eval(v.X, env) == eval(v.Y, env)
		case syntax.NEQ:
			return eval(v.X, env) != eval(v.Y, env)
		}
	}
	// newExpr rejects everything else
	panic(fmt.Sprintf("formula: cannot evaluate %T", node))
}

func format(b *strings.Builder, node syntax.Expr) {
	switch v := node.(type) {
	case *syntax.Ident:
		b.WriteString(v.Name)
	case *syntax.ParenExpr:
		format(b, v.X)
	case *syntax.UnaryExpr:
		b.WriteString("not ")
		operand(b, v.X, syntax.NOT)
	case *syntax.BinaryExpr:
		operand(b, v.X, v.Op)
		b.WriteString(" ")
		b.WriteString(v.Op.String())
		b.WriteString(" ")
		operand(b, v.Y, v.Op)
	}
}

// operand parenthesizes compound children unless they chain the same
// associative operator.
func operand(b *strings.Builder, node syntax.Expr, parent syntax.Token) {
	for {
		p, ok := node.(*syntax.ParenExpr)
		if !ok {
			break
		}
		node = p.X
	}
	switch v := node.(type) {
	case *syntax.Ident:
		format(b, v)
		return
	case *syntax.UnaryExpr:
		if parent == syntax.AND || parent == syntax.OR {
			format(b, v)
			return
		}
	case *syntax.BinaryExpr:
		if v.Op == parent && (parent == syntax.AND || parent == syntax.OR) {
			format(b, v)
			return
		}
	}
	b.WriteString("(")
	format(b, node)
	b.WriteString(")")
}
