// Command thumbnaild runs the thumbnailer as a small HTTP service: a
// GET /thumbnail endpoint that attaches a synthetic, single-shot subscriber
// to a Loader and waits for its result, and a /metrics endpoint exposing
// the Prometheus counters internal/metrics defines.
//
// This exists to exercise the loader end to end outside of the D-Bus/QML
// host the original implementation expects; nothing here is part of the
// loader's public contract.
package main
