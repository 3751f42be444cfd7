// Package filter translates AIP-160 filter expressions over journaled
// notifications into SQL conditions.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
)

// TimestampLayout is the fixed-width UTC layout timestamps are stored in, so
// string comparison in SQL orders them correctly.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// Declarations returns the fields a notification filter may reference.
func Declarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("type", filtering.TypeString),
		filtering.DeclareIdent("player", filtering.TypeString),
		filtering.DeclareIdent("phase", filtering.TypeString),
		filtering.DeclareIdent("turn", filtering.TypeInt),
		filtering.DeclareIdent("seq", filtering.TypeInt),
		filtering.DeclareIdent("ts", filtering.TypeTimestamp),
	)
}

// SQLCondition is a WHERE clause fragment with positional parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

// Empty reports whether the condition filters nothing.
func (c SQLCondition) Empty() bool {
	return c.Clause == ""
}

var columns = map[string]string{
	"type":   "event_type",
	"player": "player",
	"phase":  "phase",
	"turn":   "turn",
	"seq":    "seq",
	"ts":     "timestamp",
}

var operators = map[string]string{
	filtering.FunctionEquals:        "=",
	filtering.FunctionNotEquals:     "!=",
	filtering.FunctionLessThan:      "<",
	filtering.FunctionLessEquals:    "<=",
	filtering.FunctionGreaterThan:   ">",
	filtering.FunctionGreaterEquals: ">=",
}

// Parse parses filter and returns its SQL condition. An empty filter yields
// an empty condition. Failures carry CodeFilterInvalid.
func Parse(filter string) (SQLCondition, error) {
	if strings.TrimSpace(filter) == "" {
		return SQLCondition{}, nil
	}
	decls, err := Declarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(filter, decls)
	if err != nil {
		return SQLCondition{}, invalid(filter, err)
	}
	cond, err := translate(parsed.CheckedExpr.GetExpr())
	if err != nil {
		return SQLCondition{}, invalid(filter, err)
	}
	return cond, nil
}

func invalid(filter string, cause error) error {
	return &apperrors.Error{
		Code:     apperrors.CodeFilterInvalid,
		Message:  "invalid filter: " + cause.Error(),
		Metadata: map[string]string{"Field": "filter", "Filter": filter},
		Cause:    cause,
	}
}

func translate(e *expr.Expr) (SQLCondition, error) {
	call := e.GetCallExpr()
	if call == nil {
		return SQLCondition{}, fmt.Errorf("unsupported expression %T", e.GetExprKind())
	}
	switch call.GetFunction() {
	case filtering.FunctionAnd:
		return join(call.GetArgs(), "AND")
	case filtering.FunctionOr:
		return join(call.GetArgs(), "OR")
	case filtering.FunctionNot:
		if len(call.GetArgs()) != 1 {
			return SQLCondition{}, fmt.Errorf("NOT takes one argument")
		}
		inner, err := translate(call.GetArgs()[0])
		if err != nil {
			return SQLCondition{}, err
		}
		return SQLCondition{Clause: "NOT " + inner.Clause, Params: inner.Params}, nil
	}
	op, ok := operators[call.GetFunction()]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unsupported function %s", call.GetFunction())
	}
	return compare(call.GetArgs(), op)
}

func join(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s takes two arguments", op)
	}
	left, err := translate(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	right, err := translate(args[1])
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func compare(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison takes two arguments")
	}
	ident := args[0].GetIdentExpr()
	if ident == nil {
		return SQLCondition{}, fmt.Errorf("left side of %s must be a field", op)
	}
	column, ok := columns[ident.GetName()]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field %s", ident.GetName())
	}
	value, err := literal(args[1])
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{Clause: fmt.Sprintf("%s %s ?", column, op), Params: []any{value}}, nil
}

func literal(e *expr.Expr) (any, error) {
	if call := e.GetCallExpr(); call != nil {
		if call.GetFunction() == filtering.FunctionTimestamp && len(call.GetArgs()) == 1 {
			return timestamp(call.GetArgs()[0])
		}
		return nil, fmt.Errorf("unsupported function %s in value position", call.GetFunction())
	}
	c := e.GetConstExpr()
	if c == nil {
		return nil, fmt.Errorf("expected a constant, got %T", e.GetExprKind())
	}
	switch kind := c.GetConstantKind().(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant %T", kind)
	}
}

func timestamp(e *expr.Expr) (string, error) {
	s, ok := e.GetConstExpr().GetConstantKind().(*expr.Constant_StringValue)
	if !ok {
		return "", fmt.Errorf("timestamp takes a string constant")
	}
	t, err := time.Parse(time.RFC3339Nano, s.StringValue)
	if err != nil {
		return "", fmt.Errorf("invalid timestamp %q", s.StringValue)
	}
	return FormatTime(t), nil
}

// FormatTime renders t in TimestampLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
