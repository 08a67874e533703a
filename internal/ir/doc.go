// Package ir provides the shared data model for loregate.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. Rule definitions, the compiled
// procedure, the per-turn execution context and trace records all live here
// so the compiler, engine, store and CLI agree on one shape.
//
// Key design constraints:
//   - NO float types in rule data or source values - probabilities, weights,
//     thresholds and vibe tracks are all integers
//   - Optional authoring fields are pointers with accessor methods that
//     apply the documented default (Enabled, Probability, ScanDepth)
//   - All JSON tags use snake_case
//   - Tags are only ever added to an ExecutionContext, never removed
package ir
