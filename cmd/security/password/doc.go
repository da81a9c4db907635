// Package password provides password hashing and verification for messagely.
//
// Hashes are bcrypt strings produced at a configurable work factor. The package includes:
// - Work factor and policy configuration (defaults + environment overrides)
// - Password policy validation
// - Verification that treats stored hashes as untrusted input
//
// Security notes:
// - Verification refuses hashes whose cost is far above the configured work factor.
// - Inputs longer than the bcrypt limit are rejected rather than silently truncated.
package password
