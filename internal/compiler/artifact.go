package compiler

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue/token"

	"github.com/roach88/loregate/internal/ir"
)

// ArtifactFormat identifies an exported procedure document.
const ArtifactFormat = "loregate.procedure"

// Artifact is the standalone form of a compiled procedure. Any runner that
// accepts a context and a logger can execute it.
type Artifact struct {
	Format        string        `json:"format"`
	EngineVersion string        `json:"engine_version"`
	Procedure     *ir.Procedure `json:"procedure"`
}

// Export renders a procedure as an indented JSON artifact.
func Export(proc *ir.Procedure) ([]byte, error) {
	if err := Verify(proc); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(Artifact{
		Format:        ArtifactFormat,
		EngineVersion: ir.EngineVersion,
		Procedure:     proc,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export procedure: %w", err)
	}
	return append(data, '\n'), nil
}

// Import reads an exported artifact and re-verifies it.
func Import(data []byte) (*ir.Procedure, error) {
	var art Artifact
	if err := decodeJSON(data, &art, token.NoPos); err != nil {
		return nil, err
	}
	if art.Format != ArtifactFormat {
		return nil, &CompileError{
			Field:   "format",
			Message: fmt.Sprintf("unsupported artifact format %q", art.Format),
		}
	}
	if err := Verify(art.Procedure); err != nil {
		return nil, err
	}
	return art.Procedure, nil
}

// Verify checks that a procedure honors the stage contract and that its
// unit IDs and hash match its contents.
func Verify(proc *ir.Procedure) error {
	if proc == nil {
		return &CompileError{Field: "procedure", Message: "procedure is nil"}
	}
	if proc.Version != ir.ProcedureVersion {
		return &CompileError{
			Field:   "version",
			Message: fmt.Sprintf("procedure version %q, engine supports %q", proc.Version, ir.ProcedureVersion),
		}
	}
	if len(proc.Units) < len(ir.FixedStages) {
		return &CompileError{Field: "stage", Message: "procedure is missing its signal stages"}
	}

	for i, id := range ir.FixedStages {
		u := proc.Units[i]
		if u.Category != ir.CategoryStage || u.Stage == nil || u.Stage.ID != id {
			return &CompileError{
				Field:   "stage",
				Message: fmt.Sprintf("unit %d must be the %s stage, got %s", i, id, u.Key),
			}
		}
	}

	if err := checkUniqueKeys(proc.Units); err != nil {
		return err
	}
	ids := make([]string, len(proc.Units))
	for i, u := range proc.Units {
		if i >= len(ir.FixedStages) && u.Category == ir.CategoryStage {
			return &CompileError{
				Field:   "stage",
				Message: fmt.Sprintf("stage unit %s outside the signal pipeline", u.Key),
			}
		}
		if err := checkPayload(u); err != nil {
			return err
		}
		want, err := ir.UnitID(u)
		if err != nil {
			return &CompileError{Field: u.Key, Message: err.Error()}
		}
		if u.ID != want {
			return &CompileError{Field: u.Key, Message: "unit id does not match its contents"}
		}
		ids[i] = u.ID
	}

	hash, err := ir.ProcedureHash(proc.Version, ids)
	if err != nil {
		return &CompileError{Field: "procedure", Message: err.Error()}
	}
	if hash != proc.Hash {
		return &CompileError{Field: "hash", Message: "procedure hash does not match its units"}
	}
	return nil
}

// checkPayload ensures exactly the payload matching the unit's category is set.
func checkPayload(u ir.Unit) error {
	set := 0
	var ok bool
	for _, p := range []struct {
		cat     string
		present bool
	}{
		{ir.CategoryStage, u.Stage != nil},
		{ir.CategoryEntry, u.Rule != nil},
		{ir.CategoryCue, u.Cue != nil},
		{ir.CategoryChain, u.Chain != nil},
		{ir.CategoryGroup, u.Group != nil},
		{ir.CategoryScoring, u.Scoring != nil},
	} {
		if p.present {
			set++
			ok = ok || p.cat == u.Category
		}
	}
	if set != 1 || !ok {
		return &CompileError{
			Field:   u.Key,
			Message: fmt.Sprintf("unit must carry exactly one %s payload", u.Category),
		}
	}
	return nil
}
