package completion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
)

func textField(id string, required bool) domain.SchemaField {
	return domain.SchemaField{FieldID: id, Kind: domain.FieldText, Required: required}
}

func fileField(id string, required bool) domain.SchemaField {
	return domain.SchemaField{FieldID: id, Kind: domain.FieldFile, Required: required}
}

func evidenceFor(fieldIDs ...string) []*domain.EvidenceFile {
	files := make([]*domain.EvidenceFile, 0, len(fieldIDs))
	for i, fid := range fieldIDs {
		files = append(files, &domain.EvidenceFile{
			ID:         "ev-" + fid,
			FieldID:    fid,
			UploadedAt: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		})
	}
	return files
}

func TestEvaluate_AllItemsRequired(t *testing.T) {
	schema := &domain.IndicatorSchema{
		IndicatorID: "1.1.1",
		Rule:        domain.AllItemsRequired,
		Fields: []domain.SchemaField{
			textField("budget_amount", true),
			fileField("ordinance_copy", true),
			textField("remarks", false),
		},
	}

	t.Run("missing required field is incomplete", func(t *testing.T) {
		values := domain.FormValues{"budget_amount": "150000"}
		complete, err := Evaluate(schema, values, nil)
		require.NoError(t, err)
		assert.False(t, complete)
	})

	t.Run("all required satisfied is complete", func(t *testing.T) {
		values := domain.FormValues{"budget_amount": "150000"}
		complete, err := Evaluate(schema, values, evidenceFor("ordinance_copy"))
		require.NoError(t, err)
		assert.True(t, complete)
	})

	t.Run("optional field never blocks", func(t *testing.T) {
		values := domain.FormValues{"budget_amount": "150000", "remarks": ""}
		complete, err := Evaluate(schema, values, evidenceFor("ordinance_copy"))
		require.NoError(t, err)
		assert.True(t, complete)
	})

	t.Run("whitespace-only string is absent", func(t *testing.T) {
		values := domain.FormValues{"budget_amount": "   "}
		complete, err := Evaluate(schema, values, evidenceFor("ordinance_copy"))
		require.NoError(t, err)
		assert.False(t, complete)
	})
}

func TestEvaluate_AnyItemRequired(t *testing.T) {
	// Two explicit option groups: A = {f1, f2}, B = {f3}.
	schema := &domain.IndicatorSchema{
		IndicatorID: "2.1.3",
		Rule:        domain.AnyItemRequired,
		Fields: []domain.SchemaField{
			{FieldID: "f1", Kind: domain.FieldText, Required: true, OptionGroup: "A"},
			{FieldID: "f2", Kind: domain.FieldFile, Required: true, OptionGroup: "A"},
			{FieldID: "f3", Kind: domain.FieldText, Required: true, OptionGroup: "B"},
		},
	}

	t.Run("one full group satisfies", func(t *testing.T) {
		values := domain.FormValues{"f3": "minutes attached"}
		complete, err := Evaluate(schema, values, nil)
		require.NoError(t, err)
		assert.True(t, complete)
	})

	t.Run("partial group does not satisfy", func(t *testing.T) {
		values := domain.FormValues{"f1": "filled"}
		complete, err := Evaluate(schema, values, nil)
		require.NoError(t, err)
		assert.False(t, complete)
	})

	t.Run("group completed across field kinds", func(t *testing.T) {
		values := domain.FormValues{"f1": "filled"}
		complete, err := Evaluate(schema, values, evidenceFor("f2"))
		require.NoError(t, err)
		assert.True(t, complete)
	})
}

func TestEvaluate_AnyItemRequired_LegacyPrefixes(t *testing.T) {
	// No explicit option_group anywhere: groups come from field id
	// prefixes, mixing the option1_ and option_1_ spellings.
	schema := &domain.IndicatorSchema{
		IndicatorID: "3.2.1",
		Rule:        domain.AnyItemRequired,
		Fields: []domain.SchemaField{
			{FieldID: "option1_certificate", Kind: domain.FieldFile, Required: true},
			{FieldID: "option_1_date_issued", Kind: domain.FieldDate, Required: true},
			{FieldID: "option2_resolution", Kind: domain.FieldFile, Required: true},
		},
	}

	t.Run("both spellings land in the same group", func(t *testing.T) {
		values := domain.FormValues{"option_1_date_issued": "2026-01-15"}
		complete, err := Evaluate(schema, values, evidenceFor("option1_certificate"))
		require.NoError(t, err)
		assert.True(t, complete)
	})

	t.Run("half of group one does not satisfy", func(t *testing.T) {
		complete, err := Evaluate(schema, domain.FormValues{}, evidenceFor("option1_certificate"))
		require.NoError(t, err)
		assert.False(t, complete)
	})

	t.Run("singleton group two satisfies alone", func(t *testing.T) {
		complete, err := Evaluate(schema, domain.FormValues{}, evidenceFor("option2_resolution"))
		require.NoError(t, err)
		assert.True(t, complete)
	})
}

func TestEvaluate_AnyOptionGroupRequired(t *testing.T) {
	schema := &domain.IndicatorSchema{
		IndicatorID: "4.1.2",
		Rule:        domain.AnyOptionGroupRequired,
		Fields: []domain.SchemaField{
			{FieldID: "g1_a", Kind: domain.FieldText, Required: true, OptionGroup: "Option 1"},
			{FieldID: "g1_b", Kind: domain.FieldText, Required: true, OptionGroup: "Option 1"},
			{FieldID: "g3_a", Kind: domain.FieldText, Required: true, OptionGroup: "Option 3"},
			{FieldID: "g3_b", Kind: domain.FieldText, Required: true, OptionGroup: "Option 3"},
		},
	}

	t.Run("designated group passes on any single member", func(t *testing.T) {
		values := domain.FormValues{"g3_b": "present"}
		complete, err := Evaluate(schema, values, nil)
		require.NoError(t, err)
		assert.True(t, complete)
	})

	t.Run("ordinary group still needs all members", func(t *testing.T) {
		values := domain.FormValues{"g1_a": "present"}
		complete, err := Evaluate(schema, values, nil)
		require.NoError(t, err)
		assert.False(t, complete)
	})

	t.Run("group spelling variants normalize", func(t *testing.T) {
		variant := &domain.IndicatorSchema{
			IndicatorID: schema.IndicatorID,
			Rule:        schema.Rule,
			Fields: []domain.SchemaField{
				{FieldID: "x", Kind: domain.FieldText, Required: true, OptionGroup: "option_3"},
				{FieldID: "y", Kind: domain.FieldText, Required: true, OptionGroup: "Option 3"},
			},
		}
		complete, err := Evaluate(variant, domain.FormValues{"y": "present"}, nil)
		require.NoError(t, err)
		assert.True(t, complete)
	})
}

func TestEvaluate_SharedPlusOrLogic(t *testing.T) {
	schema := &domain.IndicatorSchema{
		IndicatorID: "5.1.1",
		Rule:        domain.SharedPlusOrLogic,
		Fields: []domain.SchemaField{
			{FieldID: "plan_document", Kind: domain.FieldFile, Required: true, CompletionGroup: domain.GroupShared},
			{FieldID: "ordinance_no", Kind: domain.FieldText, Required: true, CompletionGroup: domain.GroupOptionA},
			{FieldID: "resolution_no", Kind: domain.FieldText, Required: true, CompletionGroup: domain.GroupOptionB},
		},
	}

	t.Run("shared unsatisfied fails regardless of options", func(t *testing.T) {
		values := domain.FormValues{"ordinance_no": "2026-004", "resolution_no": "12"}
		complete, err := Evaluate(schema, values, nil)
		require.NoError(t, err)
		assert.False(t, complete)
	})

	t.Run("shared plus option A completes", func(t *testing.T) {
		values := domain.FormValues{"ordinance_no": "2026-004"}
		complete, err := Evaluate(schema, values, evidenceFor("plan_document"))
		require.NoError(t, err)
		assert.True(t, complete)
	})

	t.Run("shared plus option B completes", func(t *testing.T) {
		values := domain.FormValues{"resolution_no": "12"}
		complete, err := Evaluate(schema, values, evidenceFor("plan_document"))
		require.NoError(t, err)
		assert.True(t, complete)
	})

	t.Run("shared alone is not enough", func(t *testing.T) {
		complete, err := Evaluate(schema, domain.FormValues{}, evidenceFor("plan_document"))
		require.NoError(t, err)
		assert.False(t, complete)
	})

	t.Run("unknown completion group is a configuration error", func(t *testing.T) {
		bad := &domain.IndicatorSchema{
			IndicatorID: "5.9.9",
			Rule:        domain.SharedPlusOrLogic,
			Fields: []domain.SchemaField{
				{FieldID: "f", Kind: domain.FieldText, Required: true, CompletionGroup: "option_c"},
			},
		}
		_, err := Evaluate(bad, domain.FormValues{}, nil)
		var cfgErr *domain.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestEvaluate_EdgeCases(t *testing.T) {
	t.Run("empty schema is a configuration error", func(t *testing.T) {
		_, err := Evaluate(&domain.IndicatorSchema{IndicatorID: "6.1.1"}, domain.FormValues{}, nil)
		var cfgErr *domain.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "6.1.1", cfgErr.IndicatorID)
	})

	t.Run("nil schema is a configuration error", func(t *testing.T) {
		_, err := Evaluate(nil, domain.FormValues{}, nil)
		var cfgErr *domain.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("zero required fields is vacuously complete", func(t *testing.T) {
		schema := &domain.IndicatorSchema{
			IndicatorID: "6.1.2",
			Rule:        domain.AllItemsRequired,
			Fields:      []domain.SchemaField{textField("notes", false)},
		}
		complete, err := Evaluate(schema, domain.FormValues{}, nil)
		require.NoError(t, err)
		assert.True(t, complete)
	})

	t.Run("unrecognized rule is a configuration error", func(t *testing.T) {
		schema := &domain.IndicatorSchema{
			IndicatorID: "6.1.3",
			Rule:        domain.ValidationRule("EXACTLY_TWO_REQUIRED"),
			Fields:      []domain.SchemaField{textField("f", true)},
		}
		_, err := Evaluate(schema, domain.FormValues{"f": "x"}, nil)
		var cfgErr *domain.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("numeric and boolean zero values are present", func(t *testing.T) {
		schema := &domain.IndicatorSchema{
			IndicatorID: "6.1.4",
			Rule:        domain.AllItemsRequired,
			Fields: []domain.SchemaField{
				{FieldID: "count", Kind: domain.FieldNumber, Required: true},
				{FieldID: "flag", Kind: domain.FieldSelect, Required: true},
			},
		}
		complete, err := Evaluate(schema, domain.FormValues{"count": 0.0, "flag": false}, nil)
		require.NoError(t, err)
		assert.True(t, complete)
	})

	t.Run("nil value is absent", func(t *testing.T) {
		schema := &domain.IndicatorSchema{
			IndicatorID: "6.1.5",
			Rule:        domain.AllItemsRequired,
			Fields:      []domain.SchemaField{textField("f", true)},
		}
		complete, err := Evaluate(schema, domain.FormValues{"f": nil}, nil)
		require.NoError(t, err)
		assert.False(t, complete)
	})
}
