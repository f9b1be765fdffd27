//go:build cgo

package users

// go-libsql is a cgo-only driver; its registration is gated so the package
// still compiles with CGO_ENABLED=0.
import _ "github.com/tursodatabase/go-libsql"
