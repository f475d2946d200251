package partysync

import "github.com/RemnantsOfSiren/partysync/types"

// Re-export types from the internal types package.
//
// This file provides a stable public API for the library's core types and
// interfaces. It uses type aliases to re-export definitions from the `types`
// subpackage, which contains the actual implementations.
//
// This pattern solves the "import cycle" problem by allowing internal
// packages to depend on `types` without depending on the root partysync
// package, while still providing a convenient partysync.MutationEvent,
// partysync.Logger, etc. for users.
type (
	MutationKind  = types.MutationKind
	MutationEvent = types.MutationEvent
	Metadata      = types.Metadata
	GroupRecord   = types.GroupRecord
	Future        = types.Future
)

// Re-export interfaces from the internal types package for convenience.
type (
	Logger            = types.Logger
	MetricsCollector  = types.MetricsCollector
	BudgetProvider    = types.BudgetProvider
	SessionAttributes = types.SessionAttributes
	Hooks             = types.Hooks
	OperationClass    = types.OperationClass
)

// Re-export mutation kinds and operation classes.
const (
	MutationAdd         = types.MutationAdd
	MutationRemove      = types.MutationRemove
	MutationSetCapacity = types.MutationSetCapacity

	ClassRead  = types.ClassRead
	ClassWrite = types.ClassWrite
)
