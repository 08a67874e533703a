package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/loregate/internal/ir"
)

// Top-level CUE labels of a rule library.
const (
	LabelStage   = "stage"
	LabelEntry   = "entry"
	LabelCue     = "cue"
	LabelChain   = "chain"
	LabelGroup   = "group"
	LabelScoring = "scoring"
)

// CompileError is raised when a library cannot be decoded or compiled into a
// procedure. It aborts the turn before any unit runs.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileLibrary decodes a CUE value into a rule library.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// Each category is a struct keyed by rule id, and field order is
// declaration order:
//
//	stage: emotion: signals: [{keywords: ["glad"], emit: "JOY"}]
//	entry: rain: {keywords: ["rain"], content: text: "It is raining."}
//
// All decode errors are collected; the returned library holds every rule
// that decoded cleanly.
func CompileLibrary(v cue.Value) (*ir.Library, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	lib := &ir.Library{}
	var errs []error

	errs = append(errs, eachLabeled(v, LabelStage, func(id string, el cue.Value) error {
		var s ir.StageDef
		if err := decodeStrict(el, &s); err != nil {
			return err
		}
		if err := adoptID(&s.ID, id, el); err != nil {
			return err
		}
		lib.Stages = append(lib.Stages, s)
		return nil
	})...)

	errs = append(errs, eachLabeled(v, LabelEntry, func(id string, el cue.Value) error {
		var r ir.Rule
		if err := decodeStrict(el, &r); err != nil {
			return err
		}
		if err := adoptID(&r.ID, id, el); err != nil {
			return err
		}
		lib.Entries = append(lib.Entries, r)
		return nil
	})...)

	errs = append(errs, eachLabeled(v, LabelCue, func(id string, el cue.Value) error {
		var c ir.CueTable
		if err := decodeStrict(el, &c); err != nil {
			return err
		}
		if err := adoptID(&c.ID, id, el); err != nil {
			return err
		}
		lib.Cues = append(lib.Cues, c)
		return nil
	})...)

	errs = append(errs, eachLabeled(v, LabelChain, func(id string, el cue.Value) error {
		var c ir.LogicChain
		if err := decodeStrict(el, &c); err != nil {
			return err
		}
		if err := adoptID(&c.ID, id, el); err != nil {
			return err
		}
		lib.Chains = append(lib.Chains, c)
		return nil
	})...)

	errs = append(errs, eachLabeled(v, LabelGroup, func(id string, el cue.Value) error {
		var g ir.ProbabilityGroup
		if err := decodeStrict(el, &g); err != nil {
			return err
		}
		if err := adoptID(&g.ID, id, el); err != nil {
			return err
		}
		lib.Groups = append(lib.Groups, g)
		return nil
	})...)

	errs = append(errs, eachLabeled(v, LabelScoring, func(id string, el cue.Value) error {
		var s ir.ScoringRule
		if err := decodeStrict(el, &s); err != nil {
			return err
		}
		if err := adoptID(&s.ID, id, el); err != nil {
			return err
		}
		lib.Scoring = append(lib.Scoring, s)
		return nil
	})...)

	return lib, errs
}

// eachLabeled calls fn for every field under label, in declaration order.
func eachLabeled(v cue.Value, label string, fn func(id string, el cue.Value) error) []error {
	catVal := v.LookupPath(cue.ParsePath(label))
	if !catVal.Exists() {
		return nil
	}

	iter, err := catVal.Fields()
	if err != nil {
		return []error{&CompileError{
			Field:   label,
			Message: fmt.Sprintf("%s must be a struct keyed by id: %v", label, err),
			Pos:     catVal.Pos(),
		}}
	}

	var errs []error
	for iter.Next() {
		if err := fn(iter.Label(), iter.Value()); err != nil {
			errs = append(errs, prefixField(err, label+"."+iter.Label()))
		}
	}
	return errs
}

// decodeStrict exports a concrete CUE value as JSON and decodes it, rejecting
// fields the target type does not know.
func decodeStrict(v cue.Value, dst any) error {
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return formatCUEError(err)
	}
	return decodeJSON(data, dst, v.Pos())
}

func decodeJSON(data []byte, dst any, pos token.Pos) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &CompileError{Field: "decode", Message: err.Error(), Pos: pos}
	}
	return nil
}

// adoptID takes the rule id from its CUE label. An explicit id field must
// agree with the label.
func adoptID(dst *string, label string, v cue.Value) error {
	if *dst != "" && *dst != label {
		return &CompileError{
			Field:   "id",
			Message: fmt.Sprintf("id %q does not match label %q", *dst, label),
			Pos:     v.Pos(),
		}
	}
	*dst = label
	return nil
}

// prefixField qualifies a CompileError's field with the rule path.
func prefixField(err error, path string) error {
	if ce, ok := err.(*CompileError); ok {
		return &CompileError{Field: path + "." + ce.Field, Message: ce.Message, Pos: ce.Pos}
	}
	return fmt.Errorf("%s: %w", path, err)
}

// DecodeLibraryJSON decodes the JSON form of a rule library (the host
// application's rule store document).
func DecodeLibraryJSON(data []byte) (*ir.Library, error) {
	var lib ir.Library
	if err := decodeJSON(data, &lib, token.NoPos); err != nil {
		return nil, err
	}
	return &lib, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
