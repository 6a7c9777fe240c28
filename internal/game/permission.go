package game

import (
	"context"

	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

// PermissionSource yields the camera permission status. The pipeline
// starts only after PermissionGranted; prompting the user is the
// host's concern, not ours.
type PermissionSource interface {
	Request(ctx context.Context) (types.Permission, error)
}

// StaticPermission is a PermissionSource with a fixed answer, used by
// the daemon (headless hosts have no prompt) and by tests.
type StaticPermission types.Permission

// Request implements PermissionSource.
func (p StaticPermission) Request(ctx context.Context) (types.Permission, error) {
	return types.Permission(p), nil
}
