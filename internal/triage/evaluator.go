// Package triage turns a structured symptom record into an urgency verdict
// and its display form. Evaluation is a deterministic rule pass, verification
// is an independent guideline cross-check that may only raise the level, and
// presentation is a total map over the closed level enumeration.
package triage

import (
	"fmt"
	"strconv"
	"strings"

	"carecompanion/pkg"
)

// urgency ranks levels for comparisons. Routine and Normal share a rank; an
// unrecognized level ranks as Routine.
func urgency(l pkg.TriageLevel) int {
	switch l {
	case pkg.LevelEmergency:
		return 3
	case pkg.LevelUrgent:
		return 2
	}
	return 1
}

// evalRule is one built-in evaluator rule. match reports whether the rule
// fires and, if so, the human-readable reason.
type evalRule struct {
	level pkg.TriageLevel
	match func(pkg.StructuredRecord) (bool, string)
}

// Evaluator applies a fixed rule set to a StructuredRecord. Rules are held in
// urgency-descending order so a record satisfying several rules always yields
// the most urgent applicable level.
type Evaluator struct {
	rules []evalRule
}

// NewEvaluator constructs the evaluator with its built-in ruleset.
func NewEvaluator() *Evaluator {
	return &Evaluator{rules: []evalRule{
		{pkg.LevelEmergency, matchRedFlags},
		{pkg.LevelEmergency, matchExtremeSeverity},
		{pkg.LevelUrgent, matchHighSeverity},
		{pkg.LevelUrgent, matchProlongedDuration},
	}}
}

// Evaluate selects the highest-urgency rule whose trigger condition matches.
// If no rule matches it returns the Routine default with a fixed non-urgent
// reason. The empty record always takes the default path.
func (e *Evaluator) Evaluate(record pkg.StructuredRecord) (pkg.TriageVerdict, error) {
	if len(e.rules) == 0 {
		return pkg.TriageVerdict{}, fmt.Errorf("triage: evaluator has no rules")
	}
	for _, r := range e.rules {
		if ok, reason := r.match(record); ok {
			return pkg.TriageVerdict{Level: r.level, Reason: reason}, nil
		}
	}
	return pkg.TriageVerdict{
		Level:  pkg.LevelRoutine,
		Reason: "No red flags found; symptoms appear non-urgent.",
	}, nil
}

func matchRedFlags(record pkg.StructuredRecord) (bool, string) {
	flags := listField(record, "red_flags")
	if len(flags) == 0 {
		return false, ""
	}
	return true, fmt.Sprintf("Red-flag symptoms reported: %s. Immediate evaluation is required.", strings.Join(flags, ", "))
}

func matchExtremeSeverity(record pkg.StructuredRecord) (bool, string) {
	score, ok := severityScore(record)
	if !ok || score < 9 {
		return false, ""
	}
	return true, fmt.Sprintf("Reported severity %d/10 indicates a potential emergency.", score)
}

func matchHighSeverity(record pkg.StructuredRecord) (bool, string) {
	score, ok := severityScore(record)
	if !ok || score < 7 {
		return false, ""
	}
	return true, fmt.Sprintf("Reported severity %d/10 needs prompt medical attention.", score)
}

func matchProlongedDuration(record pkg.StructuredRecord) (bool, string) {
	days, ok := durationDays(record)
	if !ok || days < 14 {
		return false, ""
	}
	return true, fmt.Sprintf("Symptoms persisting for about %d days warrant prompt review.", days)
}

// listField reads a field that may arrive as a list of strings, a list of
// arbitrary JSON values, or a single comma-separated string.
func listField(record pkg.StructuredRecord, key string) []string {
	v, ok := record[key]
	if !ok {
		return nil
	}
	var out []string
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func stringField(record pkg.StructuredRecord, key string) string {
	v, ok := record[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// severityScore normalises the severity field to a 0-10 score. It accepts
// numbers, numeric strings ("8", "8/10") and the common qualitative words.
func severityScore(record pkg.StructuredRecord) (int, bool) {
	v, ok := record["severity"]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return clampScore(int(t)), true
	case int:
		return clampScore(t), true
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if s == "" {
			return 0, false
		}
		if i := strings.IndexByte(s, '/'); i > 0 {
			s = s[:i]
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return clampScore(n), true
		}
		switch {
		case strings.Contains(s, "unbearable"), strings.Contains(s, "worst"):
			return 10, true
		case strings.Contains(s, "severe"):
			return 8, true
		case strings.Contains(s, "moderate"):
			return 5, true
		case strings.Contains(s, "mild"):
			return 2, true
		}
	}
	return 0, false
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 10 {
		return 10
	}
	return n
}

// durationDays turns a free-text duration ("3 days", "2 weeks", "about a
// month", "since yesterday") into an approximate day count.
func durationDays(record pkg.StructuredRecord) (int, bool) {
	s := strings.ToLower(stringField(record, "duration"))
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, "yesterday") {
		return 1, true
	}
	if strings.Contains(s, "today") || strings.Contains(s, "hour") || strings.Contains(s, "minute") {
		return 0, true
	}

	n := 1
	for _, f := range strings.Fields(s) {
		if v, err := strconv.Atoi(f); err == nil {
			n = v
			break
		}
		if f == "a" || f == "an" || f == "one" {
			n = 1
		}
	}
	switch {
	case strings.Contains(s, "month"):
		return n * 30, true
	case strings.Contains(s, "week"):
		return n * 7, true
	case strings.Contains(s, "day"):
		return n, true
	}
	return 0, false
}
