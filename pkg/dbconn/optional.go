package dbconn

// Optional is a connection the caller may or may not supply. The zero value is
// absent.
type Optional[C any] struct {
	conn C
	ok   bool
}

// Some wraps a caller-owned connection.
func Some[C any](conn C) Optional[C] {
	return Optional[C]{conn: conn, ok: true}
}

// Absent returns an empty Optional, asking the callee to resolve its own
// connection.
func Absent[C any]() Optional[C] {
	return Optional[C]{}
}

// Get returns the wrapped connection and whether one was supplied.
func (o Optional[C]) Get() (C, bool) {
	return o.conn, o.ok
}

// Present reports whether a connection was supplied.
func (o Optional[C]) Present() bool {
	return o.ok
}
