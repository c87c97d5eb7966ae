// Package fs provides a small filesystem abstraction for testability and
// fault injection.
//
//   - [LocalFS]: production implementation using the standard os package
//   - [FaultyFS]: test utility that injects write/sync/rename errors
//
// Production code uses fs.Default. Cache tests inject [FaultyFS] to prove
// that interrupted writes leave previously persisted files intact.
package fs
