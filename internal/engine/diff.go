package engine

import (
	"slices"
	"strings"

	"github.com/roach88/loregate/internal/ir"
)

// Field change types.
const (
	ChangeAppend = "append"
	ChangeModify = "modify"
)

// FieldChange describes one changed field.
// AddedText and AddedLength are set only for appends; AddedLength counts
// bytes of UTF-8.
type FieldChange struct {
	Field       string `json:"field"`
	Type        string `json:"type"`
	AddedText   string `json:"added_text,omitempty"`
	AddedLength int    `json:"added_length,omitempty"`
}

// DiffReport is the structured change between two context snapshots.
type DiffReport struct {
	Fields []FieldChange `json:"fields"`
	Tags   []string      `json:"tags"`
}

// Diff compares a pre-turn snapshot with the post-turn context.
//
// Unchanged fields are omitted. A field whose new value strictly extends the
// old one is an append; anything else, including a field that did not exist
// before, is a modify. New tags are reported in first-appearance order.
// Diff never fails: ambiguous comparisons resolve to modify.
func Diff(before, after *ir.ExecutionContext) DiffReport {
	report := DiffReport{Fields: []FieldChange{}, Tags: []string{}}

	names := after.FieldNames()
	order := before.FieldNames()
	for _, n := range names {
		if !slices.Contains(order, n) {
			order = append(order, n)
		}
	}

	for _, name := range order {
		if !after.HasField(name) {
			continue
		}
		was, now := before.Field(name), after.Field(name)
		existed := before.HasField(name)
		if existed && was == now {
			continue
		}
		if existed && len(now) > len(was) && strings.HasPrefix(now, was) {
			added := now[len(was):]
			report.Fields = append(report.Fields, FieldChange{
				Field:       name,
				Type:        ChangeAppend,
				AddedText:   added,
				AddedLength: len(added),
			})
			continue
		}
		if !existed && now == "" {
			continue
		}
		report.Fields = append(report.Fields, FieldChange{Field: name, Type: ChangeModify})
	}

	for _, t := range after.Tags() {
		if !before.HasTag(t) {
			report.Tags = append(report.Tags, t)
		}
	}
	return report
}
