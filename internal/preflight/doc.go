// Package preflight provides readiness checks for the filesystem paths,
// credentials, and history database photoferry depends on.
//
// The CLI "photoferry preflight" command renders RunAll as a table; the
// upload path calls CheckCredentials directly so a missing token fails before
// any file is read.
package preflight
