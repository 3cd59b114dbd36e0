// Package snapshot provides config snapshot implementations: an immutable
// View satisfying types.ConfigSnapshot and a Static source with a mutable
// backing configuration for tests and tooling.
package snapshot
