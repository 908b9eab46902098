// Package flows holds the protocol sequencing logic of the session engine as
// pure functions. Each flow takes its dependencies as a struct of funcs and
// returns a result carrying a failure-kind classification; the root package
// maps kinds onto its sentinel errors and session-state transitions. Keeping
// the sequencing here makes the ordering rules (step n+1 never starts before
// step n resolves, persist only after the whole sequence succeeds) testable
// without redis or a live gateway.
package flows
