// Package assignment produces sticky experiment assignments: the variant a
// user receives on first exposure is persisted and returned unchanged on
// every later call, even if the experiment's targeting rules or traffic
// allocation change afterwards.
//
// Stickiness is enforced at the store boundary with a conditional
// "create if absent" write rather than in-process locking, so it holds across
// distributed callers: when two concurrent first-exposures race, exactly one
// write wins and the loser reads back the winner's record. Users who are
// excluded by targeting or fall outside the traffic slice get nothing
// persisted, leaving them eligible for reconsideration if targeting later
// matches.
//
// Three Store implementations ship with the package: MemoryStore for tests
// and single-process use, RedisStore built on SET NX, and PostgresStore built
// on a unique index with ON CONFLICT DO NOTHING.
package assignment
