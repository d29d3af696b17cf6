//go:build !svckit_nodb

package dbconn

// Enabled reports whether connection resolution is compiled in. Build with
// -tags svckit_nodb for the envelope-only variant.
const Enabled = true
