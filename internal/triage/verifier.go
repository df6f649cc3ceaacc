package triage

import (
	"fmt"
	"strings"

	"carecompanion/pkg"
)

// GuidelineRule is one entry of the independently maintained guideline
// ruleset (standard-of-care escalation criteria). A rule fires when the named
// record field carries any of the listed phrases; an empty field name matches
// against every field in the record.
type GuidelineRule struct {
	Name  string          `yaml:"name"`
	Level pkg.TriageLevel `yaml:"level"`
	Field string          `yaml:"field"`
	AnyOf []string        `yaml:"any_of"`
}

// Fires reports whether the rule's trigger condition holds on the record.
func (r GuidelineRule) Fires(record pkg.StructuredRecord) bool {
	if len(r.AnyOf) == 0 {
		return false
	}
	var haystack []string
	if r.Field != "" {
		haystack = fieldValues(record, r.Field)
	} else {
		for key := range record {
			haystack = append(haystack, fieldValues(record, key)...)
		}
	}
	for _, have := range haystack {
		lower := strings.ToLower(have)
		for _, want := range r.AnyOf {
			if want != "" && strings.Contains(lower, strings.ToLower(want)) {
				return true
			}
		}
	}
	return false
}

// Verify cross-checks the proposed verdict against the guideline ruleset. A
// firing rule may raise the level, never lower it; with an empty ruleset the
// verdict passes through unchanged apart from level normalisation. The
// ruleset is maintained and audited independently of the evaluator's
// extraction heuristics.
func Verify(verdict pkg.TriageVerdict, record pkg.StructuredRecord, rules []GuidelineRule) pkg.TriageVerdict {
	out := verdict
	out.Level = out.Level.Normalize()
	for _, r := range rules {
		level := r.Level.Normalize()
		if urgency(level) <= urgency(out.Level) {
			continue
		}
		if r.Fires(record) {
			out.Level = level
			out.Reason = fmt.Sprintf("Escalated by guideline %q: %s", r.Name, verdict.Reason)
		}
	}
	return out
}

// fieldValues flattens a record field into comparable strings.
func fieldValues(record pkg.StructuredRecord, key string) []string {
	if vals := listField(record, key); len(vals) > 0 {
		return vals
	}
	if s := stringField(record, key); s != "" {
		return []string{s}
	}
	if v, ok := record[key]; ok {
		return []string{fmt.Sprint(v)}
	}
	return nil
}
