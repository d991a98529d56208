// Command thumbctl is an operator tool for driving a Loader outside of any
// host application: "warm" walks a directory tree and attaches a
// synthetic, low-priority subscriber per file so the on-disk cache is
// pre-populated, and "prune" sweeps the cache directory for entries older
// than a configurable age.
//
// Neither subcommand is part of the loader's contract; both exist to give
// operators a way to exercise the cache from a shell without a QML host.
package main
