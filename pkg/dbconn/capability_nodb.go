//go:build svckit_nodb

package dbconn

// Enabled reports whether connection resolution is compiled in.
const Enabled = false
