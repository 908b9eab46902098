// Package credstore persists the client's session credentials: the active
// token set and the user profile. It is the single durable store the session
// engine writes to; everything else in the module treats it as the source of
// truth for "is someone signed in".
//
// Records live in redis under two keys sharing one prefix. Token sets are
// encoded as a versioned binary record, profiles as JSON. Writes that must be
// observed together (profile + tokens after a completed login sequence) go
// through StoreSession, which commits both in a single transaction.
package credstore
