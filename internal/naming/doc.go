// Package naming implements the filename conventions of the deconvolution
// workflow: declarative find/replace rule sets that derive sibling channel
// files from a seed file, merged-output name derivation, channel label
// extraction, filesystem-safe name sanitization, and in-run output path
// collision resolution.
//
// Rules are data, not code. A rule set applies every rule in declaration
// order and fails with [ErrNoMatchFound] when a find string is absent, so
// the same set can be validated, applied, and reversed mechanically.
package naming
