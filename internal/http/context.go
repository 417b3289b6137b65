package http

import (
	"context"

	"github.com/example/nucmed-tracker/internal/application"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	patientIDContextKey contextKey = "patient_id"
	userIDContextKey    contextKey = "user_id"
	roleIDContextKey    contextKey = "role_id"
	assetIDContextKey   contextKey = "asset_id"
	itemIDContextKey    contextKey = "item_id"
	lotIDContextKey     contextKey = "lot_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithPatientID injects the patient identifier resolved from the request path.
func ContextWithPatientID(ctx context.Context, patientID string) context.Context {
	return context.WithValue(ctx, patientIDContextKey, patientID)
}

// PatientIDFromContext extracts a patient identifier previously associated with the context.
func PatientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(patientIDContextKey).(string)
	return id, ok
}

// ContextWithUserID injects the user identifier resolved from the request path.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts a user identifier previously associated with the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok
}

// ContextWithRoleID injects the role identifier resolved from the request path.
func ContextWithRoleID(ctx context.Context, roleID string) context.Context {
	return context.WithValue(ctx, roleIDContextKey, roleID)
}

// RoleIDFromContext extracts a role identifier previously associated with the context.
func RoleIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(roleIDContextKey).(string)
	return id, ok
}

// ContextWithAssetID injects the asset identifier resolved from the request path.
func ContextWithAssetID(ctx context.Context, assetID string) context.Context {
	return context.WithValue(ctx, assetIDContextKey, assetID)
}

// AssetIDFromContext extracts an asset identifier previously associated with the context.
func AssetIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(assetIDContextKey).(string)
	return id, ok
}

// ContextWithItemID injects the stock item identifier resolved from the request path.
func ContextWithItemID(ctx context.Context, itemID string) context.Context {
	return context.WithValue(ctx, itemIDContextKey, itemID)
}

// ItemIDFromContext extracts a stock item identifier previously associated with the context.
func ItemIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(itemIDContextKey).(string)
	return id, ok
}

// ContextWithLotID injects the tracer lot identifier resolved from the request path.
func ContextWithLotID(ctx context.Context, lotID string) context.Context {
	return context.WithValue(ctx, lotIDContextKey, lotID)
}

// LotIDFromContext extracts a tracer lot identifier previously associated with the context.
func LotIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(lotIDContextKey).(string)
	return id, ok
}
