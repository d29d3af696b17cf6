// Package postgres holds the Postgres repositories. Data-access methods are
// written once in *.conn.go templates and expanded by connfill into methods
// that use a caller-supplied connection or borrow one from the resolver.
package postgres

//go:generate go run github.com/fastygo/svckit/cmd/connfill task_repo.conn.go
