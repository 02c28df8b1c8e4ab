package completion

import (
	"regexp"
	"strings"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
)

// groupingKind tags how option groups were derived.
type groupingKind int

const (
	// groupingExplicit groups by the option_group set on each field.
	groupingExplicit groupingKind = iota
	// groupingLegacyPositional derives groups from field id prefixes
	// ("option1_", "option_1_", ...). Legacy compatibility only; new
	// schemas must set option_group explicitly.
	groupingLegacyPositional
)

// grouping is the result of partitioning an indicator's required fields
// into option groups, preserving first-seen group order.
type grouping struct {
	kind   groupingKind
	order  []string
	groups map[string][]domain.SchemaField
}

var legacyPrefix = regexp.MustCompile(`^option_?(\d+)_`)

// groupRequiredFields partitions the required fields of a schema into
// option groups. When any required field carries an explicit option_group
// the explicit path is used and fields without one form singleton groups;
// otherwise the legacy positional adapter derives groups from field id
// prefixes, again falling back to singleton groups for ids that do not
// match the convention.
func groupRequiredFields(fields []domain.SchemaField) grouping {
	required := make([]domain.SchemaField, 0, len(fields))
	explicit := false
	for _, f := range fields {
		if !f.Required {
			continue
		}
		required = append(required, f)
		if f.OptionGroup != "" {
			explicit = true
		}
	}

	g := grouping{groups: make(map[string][]domain.SchemaField)}
	if explicit {
		g.kind = groupingExplicit
	} else {
		g.kind = groupingLegacyPositional
	}

	for _, f := range required {
		key := groupKey(f, g.kind)
		if _, seen := g.groups[key]; !seen {
			g.order = append(g.order, key)
		}
		g.groups[key] = append(g.groups[key], f)
	}
	return g
}

func groupKey(f domain.SchemaField, kind groupingKind) string {
	if kind == groupingExplicit {
		if f.OptionGroup != "" {
			return normalizeGroup(f.OptionGroup)
		}
		return f.FieldID
	}
	if m := legacyPrefix.FindStringSubmatch(f.FieldID); m != nil {
		return "option" + m[1]
	}
	return f.FieldID
}

// normalizeGroup collapses "Option 3", "option_3" and "option3" to a
// single key so the designated OR group is recognized regardless of how
// the form designer spelled it.
func normalizeGroup(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// designatedORGroup is the group that evaluates with internal OR
// semantics under ANY_OPTION_GROUP_REQUIRED (historically "Option 3").
const designatedORGroup = "option3"
