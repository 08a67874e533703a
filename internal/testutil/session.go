package testutil

// FixedSessionGenerator generates the same session token every time.
//
// This enables deterministic test execution and golden trace comparison.
// The same scenario with the same FixedSessionGenerator produces
// byte-identical turn logs.
//
// Unlike engine.FixedGenerator which returns tokens in sequence, this
// generator always returns the same token, so an engine can be rebuilt
// mid-scenario without running out.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	token string
}

// NewFixedSessionGenerator creates a new fixed session token generator.
//
// The token is typically set in the scenario YAML:
//
//	session: "test-session-0001"
//
// If token is empty, Generate() returns "test-session-default".
func NewFixedSessionGenerator(token string) *FixedSessionGenerator {
	if token == "" {
		token = "test-session-default"
	}
	return &FixedSessionGenerator{token: token}
}

// Generate returns the fixed session token.
//
// Implements engine.SessionGenerator interface.
func (g *FixedSessionGenerator) Generate() string {
	return g.token
}
