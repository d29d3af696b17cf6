// Package redis holds the Redis repositories. Methods taking an optional
// connection are generated by connfill from *.conn.go templates.
package redis

import (
	"fmt"

	"github.com/fastygo/svckit/domain"
)

//go:generate go run github.com/fastygo/svckit/cmd/connfill session_repo.conn.go

const sessionPrefix = "session:"

func storeError(op string, err error) error {
	return domain.WrapError(domain.KindInternal, op+" failed", err)
}

func sessionKey(prefix, id string) string {
	return fmt.Sprintf("%s%s", prefix, id)
}
