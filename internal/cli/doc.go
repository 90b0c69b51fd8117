// Package cli parses command-line arguments into an app.Config and maps
// parameter errors to process exit codes.
package cli
