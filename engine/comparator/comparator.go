package comparator

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Operator operador de una condición
type Operator string

const (
	Equals          Operator = "equals"
	NotEquals       Operator = "notEquals"
	Contains        Operator = "contains"
	NotContains     Operator = "notContains"
	StartsWith      Operator = "startsWith"
	EndsWith        Operator = "endsWith"
	GreaterThan     Operator = "greaterThan"
	LessThan        Operator = "lessThan"
	MoreThanDaysAgo Operator = "moreThanDaysAgo"
	LessThanDaysAgo Operator = "lessThanDaysAgo"
	ExactlyDaysAgo  Operator = "exactlyDaysAgo"
)

// aliases que guarda el builder
var aliases = map[string]Operator{
	"=":            Equals,
	"==":           Equals,
	"eq":           Equals,
	"is":           Equals,
	"!=":           NotEquals,
	"neq":          NotEquals,
	"isNot":        NotEquals,
	">":            GreaterThan,
	"gt":           GreaterThan,
	"<":            LessThan,
	"lt":           LessThan,
	"not_equals":   NotEquals,
	"not_contains": NotContains,
	"greater_than": GreaterThan,
	"less_than":    LessThan,
}

// Normalize traduce alias al operador canónico
func Normalize(op string) Operator {
	if canonical, ok := aliases[op]; ok {
		return canonical
	}
	return Operator(op)
}

// Comparator evalúa una condición (actual, esperado, operador). Nunca hace
// panic; un operador desconocido devuelve false.
type Comparator struct {
	now func() time.Time
}

func New() *Comparator {
	return &Comparator{now: time.Now}
}

// NewWithClock para operadores relativos a "hoy"
func NewWithClock(now func() time.Time) *Comparator {
	return &Comparator{now: now}
}

func (c *Comparator) Compare(actual, expected any, op Operator) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()

	switch op {
	case Equals:
		return equal(actual, expected)
	case NotEquals:
		return !equal(actual, expected)
	case Contains:
		return contains(actual, expected)
	case NotContains:
		return !contains(actual, expected)
	case StartsWith:
		return strings.HasPrefix(normalizeString(actual), normalizeString(expected))
	case EndsWith:
		return strings.HasSuffix(normalizeString(actual), normalizeString(expected))
	case GreaterThan:
		o := order(actual, expected)
		return o != incomparable && o > 0
	case LessThan:
		o := order(actual, expected)
		return o != incomparable && o < 0
	case MoreThanDaysAgo, LessThanDaysAgo, ExactlyDaysAgo:
		return c.daysAgo(actual, expected, op)
	}
	return false
}

// ============================================================================
// Coercion
// ============================================================================

const incomparable = math.MinInt

var errNil = errors.New("nil value")

func equal(actual, expected any) bool {
	if a, b, ok := numbers(actual, expected); ok {
		return a == b
	}
	if a, b, ok := booleans(actual, expected); ok {
		return a == b
	}
	return normalizeString(actual) == normalizeString(expected)
}

// order devuelve -1, 0, 1 o incomparable
func order(actual, expected any) int {
	if a, b, ok := numbers(actual, expected); ok {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	if a, b, ok := dates(actual, expected); ok {
		return a.Compare(b)
	}
	return incomparable
}

func contains(actual, expected any) bool {
	needle := normalizeString(expected)
	switch v := actual.(type) {
	case []any:
		for _, item := range v {
			if equal(item, expected) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range v {
			if normalizeString(item) == needle {
				return true
			}
		}
		return false
	}
	return strings.Contains(normalizeString(actual), needle)
}

func (c *Comparator) daysAgo(actual, expected any, op Operator) bool {
	when, err := toTime(actual)
	if err != nil {
		return false
	}
	days, err := cast.ToIntE(strings.TrimSpace(cast.ToString(expected)))
	if err != nil {
		return false
	}

	now := c.now()
	elapsed := int(now.Sub(when).Hours() / 24)

	switch op {
	case MoreThanDaysAgo:
		return elapsed > days
	case LessThanDaysAgo:
		return elapsed < days
	case ExactlyDaysAgo:
		return elapsed == days
	}
	return false
}

func numbers(a, b any) (float64, float64, bool) {
	if isBool(a) || isBool(b) {
		return 0, 0, false
	}
	x, err := toFloat(a)
	if err != nil {
		return 0, 0, false
	}
	y, err := toFloat(b)
	if err != nil {
		return 0, 0, false
	}
	return x, y, true
}

func toFloat(v any) (float64, error) {
	if s, ok := v.(string); ok {
		return cast.ToFloat64E(strings.TrimSpace(s))
	}
	if v == nil {
		return 0, errNil
	}
	return cast.ToFloat64E(v)
}

func booleans(a, b any) (bool, bool, bool) {
	x, okA := boolLiteral(a)
	y, okB := boolLiteral(b)
	return x, y, okA && okB
}

func boolLiteral(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func dates(a, b any) (time.Time, time.Time, bool) {
	x, err := toTime(a)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	y, err := toTime(b)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return x, y, true
}

func toTime(v any) (time.Time, error) {
	if v == nil {
		return time.Time{}, errNil
	}
	if s, ok := v.(string); ok {
		return cast.ToTimeE(strings.TrimSpace(s))
	}
	return cast.ToTimeE(v)
}

func normalizeString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(x))
	case []any, map[string]any:
		b, _ := json.Marshal(x)
		return strings.ToLower(string(b))
	}
	return strings.ToLower(strings.TrimSpace(cast.ToString(v)))
}
