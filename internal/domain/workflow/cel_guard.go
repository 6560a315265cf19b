package workflow

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// CompileCELGuard compiles a CEL expression into a GuardFunc.
//
// The expression sees aggregate_id (int), from, to, reason and actor_id
// (strings) and must evaluate to a bool. Evaluation errors deny the transition.
func CompileCELGuard(expr string) (GuardFunc, error) {
	env, err := cel.NewEnv(
		cel.Variable("aggregate_id", cel.IntType),
		cel.Variable("from", cel.StringType),
		cel.Variable("to", cel.StringType),
		cel.Variable("reason", cel.StringType),
		cel.Variable("actor_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile guard %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("guard %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program guard %q: %w", expr, err)
	}

	return func(ctx context.Context, req TransitionRequest) bool {
		out, _, err := prg.ContextEval(ctx, map[string]any{
			"aggregate_id": req.AggregateID,
			"from":         req.From.String(),
			"to":           req.To.String(),
			"reason":       req.Reason,
			"actor_id":     req.ActorID,
		})
		if err != nil {
			return false
		}
		allowed, ok := out.Value().(bool)
		return ok && allowed
	}, nil
}
