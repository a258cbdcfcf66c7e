// Package request holds helpers for reading common request inputs.
package request

import (
	"net/http"
	"strings"
)

// UserHeader carries the caller's user id, set by the fronting auth proxy
const UserHeader = "X-User-ID"

// DefaultUser is used when no user header is present (single-user installs)
const DefaultUser = "default"

// UserID returns the caller's user id
func UserID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserHeader)); id != "" {
		return id
	}
	return DefaultUser
}
