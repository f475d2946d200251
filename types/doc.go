// Package types contains the shared types and interfaces used across the
// partysync library.
//
// It exists as a leaf package so that internal packages (queue, batch, quota,
// store) can depend on these definitions without importing the root partysync
// package. The root package re-exports the public subset via type aliases,
// so consumers normally write partysync.MutationEvent, partysync.Logger, etc.
package types
