// Package textutil holds small string helpers shared by the CLI and pipeline:
// filesystem-safe tokens, display title-casing, short content hashes, and
// rune-aware truncation.
package textutil
