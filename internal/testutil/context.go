package testutil

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/types"
)

const (
	TestOperatorID = "usr_test_operator"
	TestAdminID    = "usr_test_admin"
)

// SetupContext returns a request context for a standard operator
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetUserID(ctx, TestOperatorID)
	ctx = types.SetUserRole(ctx, types.UserRoleStandard)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}

// AdminContext returns ctx acting as an admin
func AdminContext(ctx context.Context) context.Context {
	ctx = types.SetUserID(ctx, TestAdminID)
	return types.SetUserRole(ctx, types.UserRoleAdmin)
}
