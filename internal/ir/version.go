package ir

// Version constants for the procedure artifact and engine.
const (
	// ProcedureVersion is the exported procedure schema version.
	ProcedureVersion = "1"

	// EngineVersion is the loregate engine version.
	EngineVersion = "0.1.0"
)
