// Package remote is the client side of the listing store API.
//
// The wire types mirror the JSON bodies the server speaks. A Client performs
// one call at a time and classifies every failure as either a transport
// failure (no HTTP response was obtained) or an application failure (the
// store answered, but not with success). Callers treat both the same way:
// pending changes are kept and the next flush retries.
package remote
