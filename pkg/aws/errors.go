package aws

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Deletion error taxonomy. All four are recoverable per snapshot: the
// executor records the failure and continues with the rest of the plan.
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotInUse    = errors.New("snapshot in use")
	ErrPermissionDenied = errors.New("permission denied")
	ErrThrottled        = errors.New("request throttled")
)

// classifyDeleteError maps EC2 API error codes onto the taxonomy.
// Unrecognized errors pass through unchanged.
func classifyDeleteError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case "InvalidSnapshot.NotFound":
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, apiErr.ErrorMessage())
	case "InvalidSnapshot.InUse":
		return fmt.Errorf("%w: %s", ErrSnapshotInUse, apiErr.ErrorMessage())
	case "UnauthorizedOperation":
		return fmt.Errorf("%w: %s", ErrPermissionDenied, apiErr.ErrorMessage())
	case "RequestLimitExceeded", "Throttling", "ThrottlingException":
		return fmt.Errorf("%w: %s", ErrThrottled, apiErr.ErrorMessage())
	}
	return err
}
