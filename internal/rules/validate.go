// internal/rules/validate.go
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kidase-app/kidase-rules/internal/types"
)

/*
 * Authoring-time structural validation.
 *
 * Runs when a rule is saved or enabled, never on the evaluation hot path.
 * Findings are advisory: errors block save in the UI, warnings do not.
 * Evaluation must behave sensibly even for rules that were never validated.
 *
 * Shape checks per operator: $in/$nin/$all require arrays, $between a
 * 2-element array, $regex a compilable pattern string. The reserved
 * calendar clauses require their named fields plus at least one comparison
 * operator. Empty $and/$or is legal (vacuous true/false) but almost always
 * an authoring accident, so it warns.
 *
 * The known-operator check consults the live registry: operators registered
 * at runtime validate the same as built-ins.
 */

// Severity classifies a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding, addressed by a dotted clause path.
type Issue struct {
	Path     string   `json:"path"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ValidationResult is the authoring-UI contract.
// Valid is false only when at least one error-severity issue exists.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// Validator performs structural pre-flight checks on raw rule DSL.
type Validator struct {
	registry *OperatorRegistry
}

// NewValidator returns a validator backed by the given operator registry.
func NewValidator(registry *OperatorRegistry) *Validator {
	return &Validator{registry: registry}
}

// comparison operators legal inside $diff / $nthDayAfter bodies.
var calendarOps = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
}

// diffUnits are the legal $diff units.
var diffUnits = map[string]bool{
	"days": true, "weeks": true, "months": true, "years": true,
}

// Validate checks a rule's structure and returns all findings.
func (v *Validator) Validate(rule *types.RuleEntry) ValidationResult {
	var issues []Issue

	if rule.ID == "" {
		issues = append(issues, errorIssue("id", "rule id is required"))
	}
	if rule.When == nil {
		issues = append(issues, errorIssue("when", "when clause is required"))
	} else {
		issues = append(issues, v.validateClause(rule.When, "when")...)
	}

	issues = append(issues, v.validateOutcome(rule.Then, "then")...)
	issues = append(issues, v.validateOutcome(rule.Otherwise, "otherwise")...)

	return ValidationResult{Valid: !hasErrors(issues), Issues: issues}
}

// validateClause recursively checks one clause object.
func (v *Validator) validateClause(clause map[string]any, path string) []Issue {
	var issues []Issue

	if _, ok := clause["$diff"]; ok {
		return v.validateDiff(clause["$diff"], path+".$diff")
	}
	if _, ok := clause["$nthDayAfter"]; ok {
		return v.validateNthDayAfter(clause["$nthDayAfter"], path+".$nthDayAfter")
	}

	for _, key := range sortedKeys(clause) {
		value := clause[key]
		childPath := path + "." + key

		switch key {
		case "$and", "$or":
			children, ok := value.([]any)
			if !ok {
				issues = append(issues, errorIssue(childPath, key+" requires an array of clauses"))
				continue
			}
			if len(children) == 0 {
				truth := "true"
				if key == "$or" {
					truth = "false"
				}
				issues = append(issues, warningIssue(childPath, fmt.Sprintf("empty %s is vacuously %s", key, truth)))
			}
			for i, raw := range children {
				child, ok := raw.(map[string]any)
				if !ok {
					issues = append(issues, errorIssue(fmt.Sprintf("%s.%d", childPath, i), "clause must be an object"))
					continue
				}
				issues = append(issues, v.validateClause(child, fmt.Sprintf("%s.%d", childPath, i))...)
			}

		case "$not":
			child, ok := value.(map[string]any)
			if !ok {
				issues = append(issues, errorIssue(childPath, "$not requires a single clause object"))
				continue
			}
			issues = append(issues, v.validateClause(child, childPath)...)

		default:
			if strings.HasPrefix(key, "$") {
				issues = append(issues, errorIssue(childPath, "unknown logical key "+key))
				continue
			}
			issues = append(issues, v.validateCondition(value, childPath)...)
		}
	}

	return issues
}

// validateCondition checks a field condition: bare literal (shorthand $eq)
// or an object of operator/value pairs.
func (v *Validator) validateCondition(value any, path string) []Issue {
	operators, ok := value.(map[string]any)
	if !ok || !hasOperatorKey(operators) {
		// Shorthand equality against a literal; nothing to check.
		return nil
	}

	var issues []Issue
	for _, op := range sortedKeys(operators) {
		opPath := path + "." + op
		if !v.registry.Has(op) {
			issues = append(issues, errorIssue(opPath, "unknown operator "+op))
			continue
		}
		issues = append(issues, validateOperand(op, operators[op], opPath)...)
	}
	return issues
}

// validateOperand checks per-operator value shapes.
func validateOperand(op string, value any, path string) []Issue {
	switch op {
	case "$in", "$nin", "$all":
		if _, ok := value.([]any); !ok {
			return []Issue{errorIssue(path, op + " requires an array value")}
		}
	case "$between":
		arr, ok := value.([]any)
		if !ok || len(arr) != 2 {
			return []Issue{errorIssue(path, "$between requires a 2-element array")}
		}
	case "$regex":
		pattern, ok := value.(string)
		if !ok {
			return []Issue{errorIssue(path, "$regex requires a string pattern")}
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return []Issue{errorIssue(path, "invalid regex pattern: "+err.Error())}
		}
	case "$exists":
		if _, ok := value.(bool); !ok {
			return []Issue{warningIssue(path, "$exists value should be a boolean")}
		}
	}
	return nil
}

// validateDiff checks a $diff clause body.
func (v *Validator) validateDiff(body any, path string) []Issue {
	clause, ok := body.(map[string]any)
	if !ok {
		return []Issue{errorIssue(path, "$diff requires an object body")}
	}

	var issues []Issue
	if _, ok := clause["from"]; !ok {
		issues = append(issues, errorIssue(path+".from", "$diff requires a from date"))
	}
	if _, ok := clause["to"]; !ok {
		issues = append(issues, errorIssue(path+".to", "$diff requires a to date"))
	}
	unit, _ := clause["unit"].(string)
	if !diffUnits[unit] {
		issues = append(issues, errorIssue(path+".unit", "unit must be one of days, weeks, months, years"))
	}
	if countCalendarOps(clause) == 0 {
		issues = append(issues, errorIssue(path, "$diff requires at least one comparison operator"))
	}
	return issues
}

// validateNthDayAfter checks a $nthDayAfter clause body.
func (v *Validator) validateNthDayAfter(body any, path string) []Issue {
	clause, ok := body.(map[string]any)
	if !ok {
		return []Issue{errorIssue(path, "$nthDayAfter requires an object body")}
	}

	var issues []Issue
	if _, ok := clause["from"]; !ok {
		issues = append(issues, errorIssue(path+".from", "$nthDayAfter requires a from date"))
	}
	if day, ok := clause["day"]; !ok {
		issues = append(issues, errorIssue(path+".day", "$nthDayAfter requires a day of week"))
	} else if _, err := ParseWeekday(day); err != nil {
		issues = append(issues, errorIssue(path+".day", "day must be a weekday name or integer 0-6"))
	}
	nth, hasNth := clause["nth"]
	n, numeric := toFloat64(nth)
	if !hasNth || !numeric || n < 1 || n != float64(int(n)) {
		issues = append(issues, errorIssue(path+".nth", "nth must be a positive integer"))
	}
	if countCalendarOps(clause) == 0 {
		issues = append(issues, errorIssue(path, "$nthDayAfter requires at least one comparison operator"))
	}
	return issues
}

// validateOutcome checks outcome-side expression objects.
func (v *Validator) validateOutcome(outcome map[string]any, path string) []Issue {
	var issues []Issue
	for _, key := range sortedKeys(outcome) {
		// Plain object values are literal outcomes; only $-keyed objects
		// are expressions.
		if expr, ok := outcome[key].(map[string]any); ok && hasOperatorKey(expr) {
			issues = append(issues, v.ValidateExpression(expr, path+"."+key)...)
		}
	}
	return issues
}

// ValidateExpression checks an outcome-side expression object for a
// recognized $-operator key, recursing into $cond branches.
func (v *Validator) ValidateExpression(expr map[string]any, path string) []Issue {
	op, arg, ok := splitExpression(expr)
	if !ok {
		return []Issue{errorIssue(path, "expression object has no recognized $-operator key")}
	}

	if op != "$cond" {
		return nil
	}

	cond, ok := arg.(map[string]any)
	if !ok {
		return []Issue{errorIssue(path+".$cond", "$cond requires an object with if/then")}
	}

	var issues []Issue
	ifClause, ok := cond["if"].(map[string]any)
	if !ok {
		issues = append(issues, errorIssue(path+".$cond.if", "$cond requires an if clause object"))
	} else {
		issues = append(issues, v.validateClause(ifClause, path+".$cond.if")...)
	}
	if _, ok := cond["then"]; !ok {
		issues = append(issues, errorIssue(path+".$cond.then", "$cond requires a then branch"))
	}
	for _, branch := range []string{"then", "else"} {
		if nested, ok := cond[branch].(map[string]any); ok && hasOperatorKey(nested) {
			issues = append(issues, v.ValidateExpression(nested, path+".$cond."+branch)...)
		}
	}
	return issues
}

func countCalendarOps(clause map[string]any) int {
	n := 0
	for key := range clause {
		if calendarOps[key] {
			n++
		}
	}
	return n
}

func hasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

func errorIssue(path, message string) Issue {
	return Issue{Path: path, Message: message, Severity: SeverityError}
}

func warningIssue(path, message string) Issue {
	return Issue{Path: path, Message: message, Severity: SeverityWarning}
}
