// Package logs reads the dancebreak log file for the CLI "logs" command.
//
// Tail returns the last N lines (or the lines after a byte offset) and can
// block until new lines arrive. A Filter narrows output to lines mentioning
// a job ID, source identity, or any other substring.
package logs
