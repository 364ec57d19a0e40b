package formula

import (
	"fmt"

	"go.starlark.net/syntax"

	"github.com/timewinder-dev/blockcheck/cas"
)

// MaxVariables bounds the enumeration done by the satisfiability check.
const MaxVariables = 20

var (
	trueIdent  = &syntax.Ident{Name: "True"}
	falseIdent = &syntax.Ident{Name: "False"}
)

// Manager parses, combines and decides formulas. Parsed payloads are kept
// in a content-addressed cache, so a Manager is worth sharing between the
// engines of a run; it is safe for concurrent use.
type Manager struct {
	parsed *cas.LRUCache[parsed]
}

type parsed struct {
	src string
	e   *expr
}

func NewManager(cacheSize int) *Manager {
	return &Manager{parsed: cas.NewLRUCache[parsed](cacheSize)}
}

// CacheStats reports how well the payload cache is doing.
func (m *Manager) CacheStats() cas.CacheStats {
	return m.parsed.Stats()
}

// True is the formula satisfied by every assignment.
func (m *Manager) True() Formula { return mustExpr(trueIdent) }

// False is the formula satisfied by no assignment.
func (m *Manager) False() Formula { return mustExpr(falseIdent) }

// Parse reads a formula. The empty string parses as True.
func (m *Manager) Parse(text string) (Formula, error) {
	if text == "" {
		return m.True(), nil
	}
	h := cas.HashString(text)
	if p, ok := m.parsed.Get(h); ok && p.src == text {
		return p.e, nil
	}
	opts := syntax.FileOptions{}
	node, err := opts.ParseExpr("formula", text, 0)
	if err != nil {
		return nil, fmt.Errorf("parsing formula %q: %w", text, err)
	}
	e, err := newExpr(node)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", text, err)
	}
	if len(e.vars) > MaxVariables {
		return nil, fmt.Errorf("formula %q has %d variables, at most %d are supported", text, len(e.vars), MaxVariables)
	}
	m.parsed.Put(h, parsed{src: text, e: e})
	return e, nil
}

func (m *Manager) And(fs ...Formula) Formula {
	return m.fold(syntax.AND, fs)
}

func (m *Manager) Or(fs ...Formula) Formula {
	return m.fold(syntax.OR, fs)
}

func (m *Manager) Not(f Formula) Formula {
	switch f.String() {
	case "True":
		return m.False()
	case "False":
		return m.True()
	}
	return mustExpr(&syntax.UnaryExpr{Op: syntax.NOT, X: node(f)})
}

// fold joins fs with op, dropping neutral elements and short-circuiting on
// absorbing ones.
func (m *Manager) fold(op syntax.Token, fs []Formula) Formula {
	neutral, absorbing := "True", "False"
	if op == syntax.OR {
		neutral, absorbing = "False", "True"
	}
	var acc syntax.Expr
	for _, f := range fs {
		switch f.String() {
		case neutral:
			continue
		case absorbing:
			return mustExpr(node(f))
		}
		if acc == nil {
			acc = node(f)
			continue
		}
		acc = &syntax.BinaryExpr{X: acc, Op: op, Y: node(f)}
	}
	if acc == nil {
		if op == syntax.OR {
			return m.False()
		}
		return m.True()
	}
	return mustExpr(acc)
}

// Satisfiable reports whether some assignment makes f true.
func (m *Manager) Satisfiable(f Formula) (bool, error) {
	e, ok := f.(*expr)
	if !ok {
		return false, fmt.Errorf("formula %T was not built by this package", f)
	}
	if len(e.vars) > MaxVariables {
		return false, fmt.Errorf("formula has %d variables, at most %d are supported", len(e.vars), MaxVariables)
	}
	env := make(map[string]bool, len(e.vars))
	for bits := uint64(0); bits < 1<<len(e.vars); bits++ {
		for i, v := range e.vars {
			env[v] = bits&(1<<i) != 0
		}
		if eval(e.node, env) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) IsUnsatisfiable(f Formula) (bool, error) {
	sat, err := m.Satisfiable(f)
	return !sat, err
}

// Implies reports whether every model of a is a model of b.
func (m *Manager) Implies(a, b Formula) (bool, error) {
	return m.IsUnsatisfiable(m.And(a, m.Not(b)))
}

func (m *Manager) Equivalent(a, b Formula) (bool, error) {
	if a.String() == b.String() {
		return true, nil
	}
	ab, err := m.Implies(a, b)
	if err != nil || !ab {
		return false, err
	}
	return m.Implies(b, a)
}

func node(f Formula) syntax.Expr {
	return f.(*expr).node
}

func mustExpr(n syntax.Expr) *expr {
	e, err := newExpr(n)
	if err != nil {
		panic(err)
	}
	return e
}
