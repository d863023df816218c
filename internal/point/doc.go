// Package point provides the typed record and query vocabulary shared by the
// point store and the samplers built on top of it.
//
// This package contains type definitions only. All other internal packages
// import point; point imports nothing internal.
//
// Key design constraints:
//   - One Point per trial attempt; Success is derived from a non-empty Payload
//   - Weights are only comparable among points sharing an Interface
//   - Ordering uses the Seq insertion marker, never wall-clock timestamps
//   - All JSON tags use snake_case
package point
