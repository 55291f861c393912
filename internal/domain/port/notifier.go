package port

import "context"

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, userEmail string, jobID string, tripleName string, errorMsg string) error
}
