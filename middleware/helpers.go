package middleware

import (
	"context"

	"github.com/golang-jwt/jwt/v4"
	"github.com/trackclash/trackclash/models"
)

const (
	jwtClaimUserID = "user_id"
	jwtClaimRole   = "role"
)

// UserIDFromContext extracts the authenticated user's id from the token
// claims stored by Authenticate. JSON numbers arrive as float64.
func UserIDFromContext(ctx context.Context) (int, bool) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return 0, false
	}

	switch v := claims[jwtClaimUserID].(type) {
	case float64:
		id := int(v)
		if id > 0 && v == float64(id) {
			return id, true
		}
	case int:
		if v > 0 {
			return v, true
		}
	}
	return 0, false
}

func RoleFromContext(ctx context.Context) (models.UserRole, bool) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return "", false
	}
	roleStr, ok := claims[jwtClaimRole].(string)
	if !ok {
		return "", false
	}

	role := models.UserRole(roleStr)
	switch role {
	case models.RoleListener, models.RoleOrganizer:
		return role, true
	}
	return "", false
}
