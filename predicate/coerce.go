package predicate

import (
	"fmt"

	"github.com/bitdancer/reldb/relalg"
)

// unwrap turns a relalg.Value into the plain Go scalar the arithmetic
// and comparison helpers operate on.
func unwrap(v interface{}) interface{} {
	switch t := v.(type) {
	case relalg.String:
		return string(t)
	case relalg.Int:
		return int64(t)
	case relalg.Float:
		return float64(t)
	case relalg.Bool:
		return bool(t)
	default:
		return v
	}
}

func toBool(v interface{}) (bool, error) {
	switch t := unwrap(v).(type) {
	case bool:
		return t, nil
	default:
		return false, fmt.Errorf("predicate: expected boolean, got %T", v)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch t := unwrap(v).(type) {
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("predicate: expected numeric value, got %T", v)
	}
}

func isNumeric(v interface{}) bool {
	switch unwrap(v).(type) {
	case int64, float64:
		return true
	default:
		return false
	}
}

func arith(op string, x, y interface{}) (interface{}, error) {
	ux, uy := unwrap(x), unwrap(y)
	if xs, ok := ux.(string); ok && op == "+" {
		ys, ok := uy.(string)
		if !ok {
			return nil, fmt.Errorf("predicate: cannot concatenate string with %T", y)
		}
		return xs + ys, nil
	}
	xi, xIsInt := ux.(int64)
	yi, yIsInt := uy.(int64)
	if xIsInt && yIsInt {
		switch op {
		case "+":
			return xi + yi, nil
		case "-":
			return xi - yi, nil
		case "*":
			return xi * yi, nil
		case "/":
			if yi == 0 {
				return nil, fmt.Errorf("predicate: division by zero")
			}
			return xi / yi, nil
		case "%":
			if yi == 0 {
				return nil, fmt.Errorf("predicate: division by zero")
			}
			return xi % yi, nil
		}
	}
	xf, err := toFloat(x)
	if err != nil {
		return nil, err
	}
	yf, err := toFloat(y)
	if err != nil {
		return nil, err
	}
	switch op {
	case "+":
		return xf + yf, nil
	case "-":
		return xf - yf, nil
	case "*":
		return xf * yf, nil
	case "/":
		if yf == 0 {
			return nil, fmt.Errorf("predicate: division by zero")
		}
		return xf / yf, nil
	}
	return nil, fmt.Errorf("predicate: unsupported arithmetic operator %q", op)
}

func compare(op string, x, y interface{}) (interface{}, error) {
	ux, uy := unwrap(x), unwrap(y)
	if isNumeric(ux) && isNumeric(uy) {
		xf, _ := toFloat(ux)
		yf, _ := toFloat(uy)
		switch op {
		case "<":
			return xf < yf, nil
		case "<=":
			return xf <= yf, nil
		case ">":
			return xf > yf, nil
		case ">=":
			return xf >= yf, nil
		case "==":
			return xf == yf, nil
		case "!=", "<>":
			return xf != yf, nil
		}
	}
	if xv, ok := x.(relalg.Value); ok {
		if yv, ok := y.(relalg.Value); ok && xv.TypeTag() == yv.TypeTag() {
			switch op {
			case "==":
				return xv.Equal(yv), nil
			case "!=", "<>":
				return !xv.Equal(yv), nil
			}
		}
	}
	xs, xIsStr := ux.(string)
	ys, yIsStr := uy.(string)
	if xIsStr && yIsStr {
		switch op {
		case "<":
			return xs < ys, nil
		case "<=":
			return xs <= ys, nil
		case ">":
			return xs > ys, nil
		case ">=":
			return xs >= ys, nil
		case "==":
			return xs == ys, nil
		case "!=", "<>":
			return xs != ys, nil
		}
	}
	switch op {
	case "==":
		return fmt.Sprintf("%v", ux) == fmt.Sprintf("%v", uy), nil
	case "!=", "<>":
		return fmt.Sprintf("%v", ux) != fmt.Sprintf("%v", uy), nil
	}
	return nil, fmt.Errorf("predicate: cannot compare %T and %T with %q", x, y, op)
}
