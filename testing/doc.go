// Package testing provides test infrastructure for partysync-dependent code.
//
// It offers an embedded NATS server with JetStream enabled, so durable-path
// tests run in-process without Docker or an external broker.
//
// Import with an alias to avoid shadowing the standard library:
//
//	pstesting "github.com/RemnantsOfSiren/partysync/testing"
package testing
