// Package server runs the optional HTTP diagnostics endpoint next to a
// process's main loop, with graceful shutdown.
package server
