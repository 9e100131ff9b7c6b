package storage

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"github.com/pkg/errors"
	"go.einride.tech/aip/filtering"
)

// Filterable exposes the variables a filter expression can reference.
type Filterable interface {
	FilterVariablesMap() map[string]any
}

// IncludeFunc reports whether a value matches a filter.
type IncludeFunc func(Filterable) (bool, error)

// Evaluator compiles a checked AIP-160 filter into an IncludeFunc. An empty filter includes everything.
func Evaluator(filter filtering.Filter) (IncludeFunc, error) {
	if filter.CheckedExpr == nil {
		return func(_ Filterable) (bool, error) {
			return true, nil
		}, nil
	}

	env, err := Env()
	if err != nil {
		return nil, errors.Wrap(err, "creating cel env")
	}
	ast := cel.CheckedExprToAst(filter.CheckedExpr)

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "creating program from ast")
	}
	return func(f Filterable) (bool, error) {
		out, _, err := program.Eval(f.FilterVariablesMap())
		if err != nil {
			return false, errors.Wrap(err, "evaluating filter")
		}
		return out.Value() == true, nil
	}, nil
}

// Env declares the `=` operator of AIP-160 filters for the cel programs built by Evaluator.
func Env() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Function("=",
			cel.Overload("=_bool",
				[]*cel.Type{cel.BoolType, cel.BoolType},
				cel.BoolType,
				cel.BinaryBinding(func(lhs ref.Val, rhs ref.Val) ref.Val {
					return lhs.Equal(rhs)
				})),
			cel.Overload("=_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(lhs ref.Val, rhs ref.Val) ref.Val {
					return lhs.Equal(rhs)
				}))))
}
