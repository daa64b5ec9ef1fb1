package auth

import (
	"context"

	"github.com/goliatone/go-gallery/middleware/jwtware"
)

// TokenValidatorAdapter exposes a TokenService as the validator the
// jwtware middleware expects.
type TokenValidatorAdapter struct {
	Service TokenService
}

func (a TokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.Service.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ContextEnricherAdapter adapts jwtware.AuthClaims to auth.AuthClaims and
// stores claims in the standard context for downstream usage.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}

	return WithClaimsContext(c, authClaims)
}
