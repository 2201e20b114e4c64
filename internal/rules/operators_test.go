// internal/rules/operators_test.go
package rules

import "testing"

func TestOperators(t *testing.T) {
	registry := NewOperatorRegistry()

	tests := []struct {
		name    string
		op      string
		field   any
		operand any
		want    bool
	}{
		{"eq strings", "$eq", "Sun", "Sun", true},
		{"eq numeric mixing", "$eq", float64(5), 5, true},
		{"eq string vs number", "$eq", "5", float64(5), false},
		{"ne", "$ne", "Sun", "Mon", true},

		{"eq maps equal", "$eq", map[string]any{"en": "x"}, map[string]any{"en": "x"}, true},
		{"eq maps differ", "$eq", map[string]any{"en": "x"}, map[string]any{"en": "y"}, false},
		{"eq map vs string", "$eq", map[string]any{"en": "x"}, "x", false},
		{"eq slices equal", "$eq", []any{"a", "b"}, []any{"a", "b"}, true},
		{"ne maps", "$ne", map[string]any{"en": "x"}, map[string]any{"en": "y"}, true},

		{"gt numbers", "$gt", float64(10), float64(5), true},
		{"gt numeric string left", "$gt", "10", float64(5), true},
		{"gt numeric string right", "$gt", float64(10), "5", true},
		{"gt numeric strings lexical trap", "$gt", "10", "9", true},
		{"gt plain strings lexical", "$gt", "banana", "apple", true},
		{"gte equal", "$gte", float64(5), float64(5), true},
		{"lt", "$lt", float64(3), float64(5), true},
		{"lte mixed incomparable", "$lte", true, float64(5), false},

		{"in hit", "$in", "Sun", []any{"Sat", "Sun"}, true},
		{"in miss", "$in", "Mon", []any{"Sat", "Sun"}, false},
		{"in numeric mixing", "$in", 5, []any{float64(5)}, true},
		{"nin", "$nin", "Mon", []any{"Sat", "Sun"}, true},
		{"in slice element", "$in", []any{"a", "b"}, []any{[]any{"a", "b"}}, true},
		{"in map element", "$in", map[string]any{"k": "v"}, []any{map[string]any{"k": "v"}}, true},

		{"regex match", "$regex", "Meskerem 1", `^Meskerem \d+$`, true},
		{"regex no match", "$regex", "Tir 11", `^Meskerem`, false},
		{"regex invalid pattern", "$regex", "anything", "([", false},
		{"regex non-string field", "$regex", float64(3), ".*", false},

		{"contains substring", "$contains", "holy holy holy", "holy", true},
		{"contains array element", "$contains", []any{"a", "b"}, "b", true},
		{"contains map element", "$contains", []any{map[string]any{"k": "v"}}, map[string]any{"k": "v"}, true},
		{"contains miss", "$contains", "kidase", "verse", false},

		{"startsWith", "$startsWith", "Meskerem 17", "Meskerem", true},
		{"endsWith", "$endsWith", "Meskerem 17", "17", true},

		{"between inside", "$between", float64(7), []any{float64(5), float64(10)}, true},
		{"between low bound inclusive", "$between", float64(5), []any{float64(5), float64(10)}, true},
		{"between high bound inclusive", "$between", float64(10), []any{float64(5), float64(10)}, true},
		{"between below", "$between", float64(4), []any{float64(5), float64(10)}, false},
		{"between above", "$between", float64(11), []any{float64(5), float64(10)}, false},
		{"between wrong arity", "$between", float64(7), []any{float64(5)}, false},

		{"all subset", "$all", []any{"a", "b", "c"}, []any{"a", "c"}, true},
		{"all missing element", "$all", []any{"a", "b"}, []any{"a", "z"}, false},
		{"all non-array field", "$all", "abc", []any{"a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, ok := registry.Get(tt.op)
			if !ok {
				t.Fatalf("Get(%q) not registered", tt.op)
			}
			if got := fn(tt.field, tt.operand); got != tt.want {
				t.Errorf("%s(%v, %v) = %v, want %v", tt.op, tt.field, tt.operand, got, tt.want)
			}
		})
	}
}

func TestOperatorRegistry_Custom(t *testing.T) {
	registry := NewOperatorRegistry()

	if registry.Has("$isWeekend") {
		t.Fatalf("Has($isWeekend) = true before registration")
	}

	registry.Register("$isWeekend", func(field, operand any) bool {
		day, _ := field.(string)
		return day == "Sat" || day == "Sun"
	})

	fn, ok := registry.Get("$isWeekend")
	if !ok {
		t.Fatalf("Get($isWeekend) not found after Register")
	}
	if !fn("Sun", true) {
		t.Errorf("$isWeekend(Sun) = false, want true")
	}
	if fn("Wed", true) {
		t.Errorf("$isWeekend(Wed) = true, want false")
	}
}
