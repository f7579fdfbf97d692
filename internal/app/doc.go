// Package app wires configuration, logging, metrics, the shared segment and
// the relay into the three runnable processes: the thermal monitor (segment
// owner), the distortion predictor (reader and relay client) and the
// compensation controller (writer and relay server).
//
// Each process is built from a validated *config.Config and a base logger,
// then driven by a context that the command cancels on SIGINT or SIGTERM.
package app
