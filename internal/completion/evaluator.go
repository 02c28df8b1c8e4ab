// Package completion decides whether an indicator's required inputs are
// satisfied. Evaluate and Filter are pure: they read schema, form values
// and evidence metadata, mutate nothing, and may be recomputed on demand.
package completion

import (
	"fmt"
	"strings"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
)

// Evaluate reports whether the indicator is complete under its declared
// validation rule, given the submitted form values and the evidence files
// that survived correction-window filtering.
//
// An indicator with zero required fields is always complete. An empty
// schema is a configuration error: it is never evaluated to a verdict.
func Evaluate(schema *domain.IndicatorSchema, values domain.FormValues, evidence []*domain.EvidenceFile) (bool, error) {
	if schema == nil || len(schema.Fields) == 0 {
		id := ""
		if schema != nil {
			id = schema.IndicatorID
		}
		return false, &domain.ConfigurationError{IndicatorID: id, Reason: "schema has no fields"}
	}

	if !hasRequiredFields(schema.Fields) {
		return true, nil
	}

	byField := evidenceByField(evidence)

	switch schema.Rule {
	case domain.AllItemsRequired:
		return evalAllItems(schema.Fields, values, byField), nil
	case domain.AnyItemRequired:
		return evalAnyItem(schema.Fields, values, byField), nil
	case domain.AnyOptionGroupRequired:
		return evalAnyOptionGroup(schema.Fields, values, byField), nil
	case domain.SharedPlusOrLogic:
		return evalSharedPlusOr(schema, values, byField)
	default:
		return false, &domain.ConfigurationError{
			IndicatorID: schema.IndicatorID,
			Reason:      fmt.Sprintf("unrecognized validation rule %q", schema.Rule),
		}
	}
}

// evalAllItems: every required field must be satisfied.
func evalAllItems(fields []domain.SchemaField, values domain.FormValues, byField map[string][]*domain.EvidenceFile) bool {
	for _, f := range fields {
		if f.Required && !fieldSatisfied(f, values, byField) {
			return false
		}
	}
	return true
}

// evalAnyItem: required fields are grouped into option groups; the
// indicator is complete when at least one group is fully satisfied.
func evalAnyItem(fields []domain.SchemaField, values domain.FormValues, byField map[string][]*domain.EvidenceFile) bool {
	g := groupRequiredFields(fields)
	for _, key := range g.order {
		if allSatisfied(g.groups[key], values, byField) {
			return true
		}
	}
	return false
}

// evalAnyOptionGroup: like evalAnyItem, but the designated OR group
// passes when any one of its members is satisfied, while every other
// group requires all members.
func evalAnyOptionGroup(fields []domain.SchemaField, values domain.FormValues, byField map[string][]*domain.EvidenceFile) bool {
	g := groupRequiredFields(fields)
	for _, key := range g.order {
		members := g.groups[key]
		if key == designatedORGroup {
			if anySatisfied(members, values, byField) {
				return true
			}
			continue
		}
		if allSatisfied(members, values, byField) {
			return true
		}
	}
	return false
}

// evalSharedPlusOr: all shared fields must be satisfied, and either the
// option_a set or the option_b set must be fully satisfied.
func evalSharedPlusOr(schema *domain.IndicatorSchema, values domain.FormValues, byField map[string][]*domain.EvidenceFile) (bool, error) {
	var shared, optionA, optionB []domain.SchemaField
	for _, f := range schema.Fields {
		if !f.Required {
			continue
		}
		switch f.CompletionGroup {
		case domain.GroupShared:
			shared = append(shared, f)
		case domain.GroupOptionA:
			optionA = append(optionA, f)
		case domain.GroupOptionB:
			optionB = append(optionB, f)
		default:
			return false, &domain.ConfigurationError{
				IndicatorID: schema.IndicatorID,
				Reason: fmt.Sprintf("field %q has completion group %q, want shared/option_a/option_b",
					f.FieldID, f.CompletionGroup),
			}
		}
	}

	if !allSatisfied(shared, values, byField) {
		return false, nil
	}
	return allSatisfied(optionA, values, byField) || allSatisfied(optionB, values, byField), nil
}

// ── field satisfaction ───────────────────────────────────────────────────────

// fieldSatisfied reports whether one field has its required input: for
// file fields, at least one valid evidence file referencing the field;
// for everything else, a present, non-empty form value.
func fieldSatisfied(f domain.SchemaField, values domain.FormValues, byField map[string][]*domain.EvidenceFile) bool {
	if f.Kind == domain.FieldFile {
		return len(byField[f.FieldID]) > 0
	}
	v, ok := values[f.FieldID]
	if !ok {
		return false
	}
	return valuePresent(v)
}

func valuePresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		// Numbers and booleans count as present once set (zero included).
		return true
	}
}

func allSatisfied(fields []domain.SchemaField, values domain.FormValues, byField map[string][]*domain.EvidenceFile) bool {
	for _, f := range fields {
		if !fieldSatisfied(f, values, byField) {
			return false
		}
	}
	return true
}

func anySatisfied(fields []domain.SchemaField, values domain.FormValues, byField map[string][]*domain.EvidenceFile) bool {
	for _, f := range fields {
		if fieldSatisfied(f, values, byField) {
			return true
		}
	}
	return false
}

func hasRequiredFields(fields []domain.SchemaField) bool {
	for _, f := range fields {
		if f.Required {
			return true
		}
	}
	return false
}

func evidenceByField(evidence []*domain.EvidenceFile) map[string][]*domain.EvidenceFile {
	byField := make(map[string][]*domain.EvidenceFile, len(evidence))
	for _, ev := range evidence {
		byField[ev.FieldID] = append(byField[ev.FieldID], ev)
	}
	return byField
}
