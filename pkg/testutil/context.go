package testutil

import (
	"net/http"

	id "certverify/pkg/domain"
	"certverify/pkg/requestcontext"
)

// WithAdmin adds both administrator ID and login identifier to the request context.
// This is the state of a request that passed the session gate.
// An invalid ID is silently ignored.
func WithAdmin(req *http.Request, userID, identifier string) *http.Request {
	ctx := req.Context()
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithUserID(ctx, parsedUserID)
	}
	if identifier != "" {
		ctx = requestcontext.WithIdentifier(ctx, identifier)
	}
	return req.WithContext(ctx)
}
