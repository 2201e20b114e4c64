// internal/rules/operators.go
package rules

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

/*
 * Comparison operator registry.
 *
 * Built-ins cover the closed operator set of the rule DSL; Register admits
 * custom operators at runtime. Custom operators are validation-exempt: the
 * validator consults the live registry, so anything registered before
 * validation passes the known-operator check.
 *
 * Comparison rules:
 *   - $eq/$ne mix numeric types (float64/int/int64) but never coerce
 *     strings; "5" does not equal 5 under equality.
 *   - Ordering operators ($gt/$gte/$lt/$lte, $between) coerce both operands
 *     to numbers when either side is a numeric string; otherwise strings
 *     order lexically and mixed types never match.
 *   - $exists is special-cased by the evaluator: it is the only operator
 *     that can match when the field path fails to resolve.
 *
 * Why function-based: the operators vary only in their comparison, so a
 * name->func map beats fifteen single-method interface implementations.
 */

// OperatorFunc compares a resolved field value against a resolved operand.
type OperatorFunc func(field, operand any) bool

// OperatorRegistry maps operator names to comparison functions.
// Safe for concurrent use; Register may run while evaluations are in flight.
type OperatorRegistry struct {
	mu  sync.RWMutex
	ops map[string]OperatorFunc
}

// NewOperatorRegistry returns a registry preloaded with the built-in set.
func NewOperatorRegistry() *OperatorRegistry {
	r := &OperatorRegistry{ops: make(map[string]OperatorFunc)}
	r.registerBuiltins()
	return r
}

// Register adds or replaces an operator. Registered names bypass the
// validator's static allowlist.
func (r *OperatorRegistry) Register(name string, fn OperatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[name] = fn
}

// Get returns the operator function for name.
func (r *OperatorRegistry) Get(name string) (OperatorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.ops[name]
	return fn, ok
}

// Has reports whether name is registered.
func (r *OperatorRegistry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

func (r *OperatorRegistry) registerBuiltins() {
	r.ops["$eq"] = looseEqual
	r.ops["$ne"] = func(field, operand any) bool { return !looseEqual(field, operand) }
	r.ops["$gt"] = orderedOp(func(c int) bool { return c > 0 })
	r.ops["$gte"] = orderedOp(func(c int) bool { return c >= 0 })
	r.ops["$lt"] = orderedOp(func(c int) bool { return c < 0 })
	r.ops["$lte"] = orderedOp(func(c int) bool { return c <= 0 })
	r.ops["$in"] = compareIn
	r.ops["$nin"] = func(field, operand any) bool { return !compareIn(field, operand) }
	r.ops["$exists"] = compareExists
	r.ops["$regex"] = compareRegex
	r.ops["$contains"] = compareContains
	r.ops["$startsWith"] = compareStartsWith
	r.ops["$endsWith"] = compareEndsWith
	r.ops["$between"] = compareBetween
	r.ops["$all"] = compareAll
}

// looseEqual performs equality with numeric type mixing.
// float64/int/int64 compare numerically. Maps and slices, which decoded
// JSON routinely carries, compare structurally; a plain == on those
// interface values would panic.
func looseEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	if !comparableValue(a) || !comparableValue(b) {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

// comparableValue reports whether == is safe on the dynamic type.
func comparableValue(v any) bool {
	if v == nil {
		return true
	}
	return reflect.TypeOf(v).Comparable()
}

// orderedCompare performs a three-way comparison (-1/0/1).
// Numeric strings coerce to numbers when the other side is numeric or also
// a numeric string; two plain strings order lexically. The boolean reports
// whether the operands were comparable at all.
func orderedCompare(a, b any) (int, bool) {
	na, aNum := toNumberStrict(a)
	nb, bNum := toNumberStrict(b)
	if aNum && bNum {
		return compareFloats(na, nb), true
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func orderedOp(accept func(int) bool) OperatorFunc {
	return func(field, operand any) bool {
		c, ok := orderedCompare(field, operand)
		return ok && accept(c)
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// asNumbers converts both values to float64 when both are numeric types.
// No string parsing here; equality keeps native string semantics.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts numeric Go types produced by JSON decoding.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// toNumberStrict converts numeric types and numeric strings.
// Used by ordering operators; whitespace around numeric strings is ignored.
func toNumberStrict(v any) (float64, bool) {
	if f, ok := toFloat64(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// compareIn checks membership of field in the operand array.
func compareIn(field, operand any) bool {
	arr, ok := operand.([]any)
	if !ok {
		return false
	}
	for _, elem := range arr {
		if looseEqual(field, elem) {
			return true
		}
	}
	return false
}

// compareExists handles the resolved-path case; the evaluator answers the
// missing-path case before dispatching here.
func compareExists(_, operand any) bool {
	want, ok := operand.(bool)
	if !ok {
		// Shorthand {$exists: 1} style operands count as true.
		return true
	}
	return want
}

// compareRegex matches field against the operand pattern.
// Invalid patterns never match; the validator flags them at authoring time.
func compareRegex(field, operand any) bool {
	fs, ok1 := field.(string)
	ps, ok2 := operand.(string)
	if !ok1 || !ok2 {
		return false
	}
	matched, err := regexp.MatchString(ps, fs)
	return err == nil && matched
}

// compareContains matches substring for strings and element membership for
// arrays.
func compareContains(field, operand any) bool {
	switch v := field.(type) {
	case string:
		s, ok := operand.(string)
		return ok && strings.Contains(v, s)
	case []any:
		for _, elem := range v {
			if looseEqual(elem, operand) {
				return true
			}
		}
	}
	return false
}

func compareStartsWith(field, operand any) bool {
	fs, ok1 := field.(string)
	ps, ok2 := operand.(string)
	return ok1 && ok2 && strings.HasPrefix(fs, ps)
}

func compareEndsWith(field, operand any) bool {
	fs, ok1 := field.(string)
	ss, ok2 := operand.(string)
	return ok1 && ok2 && strings.HasSuffix(fs, ss)
}

// compareBetween checks low <= field <= high, bounds inclusive.
// Operand must be a 2-element array.
func compareBetween(field, operand any) bool {
	bounds, ok := operand.([]any)
	if !ok || len(bounds) != 2 {
		return false
	}
	lo, okLo := orderedCompare(field, bounds[0])
	hi, okHi := orderedCompare(field, bounds[1])
	return okLo && okHi && lo >= 0 && hi <= 0
}

// compareAll checks that every operand element is present in the field
// array.
func compareAll(field, operand any) bool {
	fieldArr, ok1 := field.([]any)
	wantArr, ok2 := operand.([]any)
	if !ok1 || !ok2 {
		return false
	}
	for _, want := range wantArr {
		found := false
		for _, have := range fieldArr {
			if looseEqual(have, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
