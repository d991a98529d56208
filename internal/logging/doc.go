// Package logging provides a minimal leveled logger gated by the LOG_LEVEL
// and DEBUG environment variables, plus a dedicated "thumbnailer" category
// used by the loader and its collaborators for fire-and-forget diagnostic
// logging (spec: failures never propagate across the worker/requester
// thread boundary — they surface as a Failed request state, and are logged
// here instead).
package logging
