// Package app wires the application together: configuration, logging, the
// scenario loader, the algorithm registry, the shared plan store, and the
// worker pool. All state is carried by constructed objects so several
// independent runs can coexist in one process (notably in tests).
package app
