// Package internal contains helpers that are intentionally private to the
// auth core.
//
// # Sub-packages
//
//   - flows: pure-function flow orchestrators for every Engine operation
//
// # What this package must NOT do
//
//   - Export types that appear in the public API.
//   - Be imported by any package outside this module.
package internal
