package calculator

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
)

// Evaluator computes closed-form arithmetic expressions over named numeric
// variables. The language is restricted to operators, numeric literals,
// bound identifiers and the functions in allowedFunctions; every expr
// builtin is disabled.
type Evaluator struct {
	options []expr.Option
}

var constants = map[string]float64{
	"pi": math.Pi,
	"E":  math.E,
}

type mathFunc struct {
	minArgs int
	maxArgs int
	fn      func(args []float64) float64
}

var allowedFunctions = map[string]mathFunc{
	"exp":   unary(math.Exp),
	"ln":    unary(math.Log),
	"log10": unary(math.Log10),
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"Abs":   unary(math.Abs),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"round": unary(math.Round),
	"log": {minArgs: 1, maxArgs: 2, fn: func(args []float64) float64 {
		if len(args) == 2 {
			return math.Log(args[0]) / math.Log(args[1])
		}
		return math.Log(args[0])
	}},
	"pow": {minArgs: 2, maxArgs: 2, fn: func(args []float64) float64 { return math.Pow(args[0], args[1]) }},
	"min": variadic(math.Min),
	"Min": variadic(math.Min),
	"max": variadic(math.Max),
	"Max": variadic(math.Max),
}

func unary(fn func(float64) float64) mathFunc {
	return mathFunc{minArgs: 1, maxArgs: 1, fn: func(args []float64) float64 { return fn(args[0]) }}
}

func variadic(fn func(a, b float64) float64) mathFunc {
	return mathFunc{minArgs: 1, maxArgs: -1, fn: func(args []float64) float64 {
		acc := args[0]
		for _, v := range args[1:] {
			acc = fn(acc, v)
		}
		return acc
	}}
}

func NewEvaluator() *Evaluator {
	opts := []expr.Option{expr.DisableAllBuiltins()}
	for name, f := range allowedFunctions {
		opts = append(opts, expr.Function(name, wrapMathFunc(name, f)))
	}
	return &Evaluator{options: opts}
}

func wrapMathFunc(name string, f mathFunc) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) < f.minArgs || (f.maxArgs >= 0 && len(params) > f.maxArgs) {
			return nil, fmt.Errorf("%s: wrong number of arguments (%d)", name, len(params))
		}
		args := make([]float64, len(params))
		for i, p := range params {
			v, err := toFloat(p)
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", name, i+1, err)
			}
			args[i] = v
		}
		return f.fn(args), nil
	}
}

var (
	errNotFinite = errors.New("result is not a finite number")
	errEmpty     = errors.New("empty expression")
)

// Eval evaluates formula against env. Names that are neither bound in env
// nor constants fail compilation.
func (e *Evaluator) Eval(formula string, env map[string]float64) (float64, error) {
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return 0, errEmpty
	}

	scope := make(map[string]any, len(env)+len(constants))
	for name, v := range constants {
		scope[name] = v
	}
	for name, v := range env {
		scope[name] = v
	}

	grammar := &arithmeticGrammar{}
	opts := make([]expr.Option, 0, len(e.options)+2)
	opts = append(opts, expr.Env(scope), expr.Patch(grammar))
	opts = append(opts, e.options...)
	program, err := expr.Compile(formula, opts...)
	if grammar.err != nil {
		return 0, fmt.Errorf("compile: %w", grammar.err)
	}
	if err != nil {
		return 0, fmt.Errorf("compile: %w", err)
	}

	out, err := expr.Run(program, scope)
	if err != nil {
		return 0, fmt.Errorf("run: %w", err)
	}
	value, err := toFloat(out)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errNotFinite
	}
	return value, nil
}

var (
	arithmeticUnary  = map[string]bool{"-": true, "+": true}
	arithmeticBinary = map[string]bool{"+": true, "-": true, "*": true, "/": true, "**": true, "^": true}
)

// arithmeticGrammar rejects every node outside plain arithmetic and promotes
// integer literals to float so integer sub-expressions cannot wrap.
type arithmeticGrammar struct {
	err error
}

func (g *arithmeticGrammar) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IntegerNode:
		ast.Patch(node, &ast.FloatNode{Value: float64(n.Value)})
	case *ast.FloatNode, *ast.IdentifierNode:
	case *ast.UnaryNode:
		if !arithmeticUnary[n.Operator] {
			g.reject("operator %q", n.Operator)
		}
	case *ast.BinaryNode:
		if !arithmeticBinary[n.Operator] {
			g.reject("operator %q", n.Operator)
		}
	case *ast.CallNode:
		callee, ok := n.Callee.(*ast.IdentifierNode)
		if !ok {
			g.reject("call of %s", n.Callee.String())
		} else if _, allowed := allowedFunctions[callee.Value]; !allowed {
			g.reject("function %q", callee.Value)
		}
	default:
		g.reject("syntax %s", n.String())
	}
}

func (g *arithmeticGrammar) reject(format string, args ...any) {
	if g.err == nil {
		g.err = fmt.Errorf("unsupported "+format, args...)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("non-numeric result of type %T", v)
	}
}
