package web

import (
	"net/http"
	"strconv"
)

const (
	HeaderRequestID = "X-Request-Id"
	// HeaderConfirmRemoval carries the user's answer to the "remove this item?" prompt.
	HeaderConfirmRemoval = "X-Confirm-Removal"
)

// RemovalConfirmed reports whether the request carries a truthy confirmation header.
func RemovalConfirmed(r *http.Request) bool {
	ok, err := strconv.ParseBool(r.Header.Get(HeaderConfirmRemoval))
	return err == nil && ok
}
