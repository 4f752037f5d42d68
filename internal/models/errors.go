package models

import (
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotFound         = status.Errorf(codes.NotFound, "not found")
	ErrChannelNotFound  = status.Errorf(codes.NotFound, "channel not found")
	ErrMessageNotFound  = status.Errorf(codes.NotFound, "message not found")
	ErrAccessDenied     = status.Errorf(codes.PermissionDenied, "access denied")
	ErrCannotWrite      = status.Errorf(codes.PermissionDenied, "insufficient permissions")
	ErrUnauthenticated  = status.Errorf(codes.Unauthenticated, "authentication failed")
	ErrUserDeactivated  = status.Errorf(codes.Unauthenticated, "user account is deactivated")
	ErrInvalidContent   = status.Errorf(codes.InvalidArgument, "invalid content")
	ErrRateLimited      = status.Errorf(codes.ResourceExhausted, "rate limit exceeded")
	ErrPersistenceFault = status.Errorf(codes.Internal, "message could not be stored")
)

// SlowModeError carries the remaining wait so the client can render a
// countdown instead of a generic rejection.
type SlowModeError struct {
	Remaining time.Duration
}

func (e *SlowModeError) Error() string {
	return fmt.Sprintf("slow mode: wait %ds", int(e.Remaining.Seconds()+0.5))
}

func (e *SlowModeError) GRPCStatus() *status.Status {
	return status.New(codes.ResourceExhausted, e.Error())
}
