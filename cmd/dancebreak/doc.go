// Package main hosts the dancebreak CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into pipeline calls:
// breaking a routine video into steps, scoring a challenge attempt, and
// maintaining the breakdown store. Configuration resolution, .env loading,
// and logger setup live here so subcommands only deal with presentation.
package main
