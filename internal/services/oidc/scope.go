package oidc

import (
	"fmt"

	"github.com/benvon/drinks-api/internal/apierror"
	"github.com/benvon/drinks-api/internal/models"
)

// Authorize allows the request only if claims grant requirement
func Authorize(requirement string, claims *models.Claims) error {
	if claims == nil {
		return apierror.NewAuthError(apierror.InsufficientScope, fmt.Errorf("no claims for %q", requirement))
	}
	if requirement == "" || !claims.HasPermission(requirement) {
		return apierror.NewAuthError(apierror.InsufficientScope, fmt.Errorf("permission %q not granted", requirement))
	}
	return nil
}
