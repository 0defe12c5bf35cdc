package service

import (
	"context"

	authmw "certverify/pkg/platform/middleware/auth"
)

// SessionVerifier adapts Service to the admin route gate.
type SessionVerifier struct {
	service *Service
}

func NewSessionVerifier(service *Service) *SessionVerifier {
	return &SessionVerifier{service: service}
}

func (v *SessionVerifier) VerifySession(ctx context.Context, token string) (*authmw.Session, bool) {
	claims, ok := v.service.Verify(ctx, token)
	if !ok {
		return nil, false
	}
	return &authmw.Session{UserID: claims.UserID, Identifier: claims.Identifier}, true
}
