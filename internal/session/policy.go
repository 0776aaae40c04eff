package session

import "context"

// ClearOnLogout returns a logout hook that wipes device-local state so the
// next user of a shared device does not inherit it. Disabled returns a no-op.
func ClearOnLogout(enabled bool, clear ...func(ctx context.Context)) Hook {
	return func(ctx context.Context, _, _ Status) {
		if !enabled {
			return
		}
		for _, fn := range clear {
			fn(ctx)
		}
	}
}
