// Package engine executes a compiled procedure once per turn.
//
// A turn runs in six steps:
//  1. resolve every named source value (override > project > static)
//  2. assemble a fresh ExecutionContext from the sources and the history
//  3. snapshot the context for diffing
//  4. run the procedure's units in order inside a Scope
//  5. record each unit outcome in the trace; a failing unit becomes a
//     failed log entry and the next unit still runs
//  6. diff the final context against the snapshot and return both
//
// Units are interpreted from typed data (conditions and actions are tagged
// unions); nothing is generated or evaluated as source text.
//
// CONCURRENCY:
//
// A turn mutates a single context in place and runs to completion
// synchronously. One Engine runs one turn at a time; a concurrent Run
// returns ErrTurnInProgress instead of waiting. No timeout applies to an
// individual unit. Cancellation of the Run context is only observed between
// units.
//
// RANDOMNESS:
//
// Probability gates, probability conditions and probability groups draw
// U ~ Uniform[0,100) from the engine's Rand. Deterministic gates are
// evaluated first so a failing rule never consumes a draw. Inject a seeded
// or scripted Rand for reproducible turns.
package engine
