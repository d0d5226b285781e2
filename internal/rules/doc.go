// Package rules defines room-version rule sets.
//
// A *Rules value is the handle passed to state resolution and on to the
// authorizer. Rule sets are declared in CUE: the built-in versions are
// embedded from versions.cue, and LoadFile unifies additional declarations
// against the same #Rules schema, so a custom version is validated exactly
// like a built-in one.
package rules
