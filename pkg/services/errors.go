// Package services is the business core shared by both wire surfaces: the
// system-init procedure and the five resource services, with validation,
// permission gates, label-update strategies, and pagination.
package services

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gomem/gomem/internal/database"
	"github.com/gomem/gomem/pkg/observability"
)

// translate maps a repository error onto the status-code taxonomy. Status
// errors pass through untouched; anything unrecognized surfaces as INTERNAL
// with a sanitized message and the cause logged.
func translate(err error, logger observability.Logger, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, database.ErrNotFound):
		return status.Error(codes.NotFound, notFoundMsg)
	case database.IsUniqueViolation(err):
		return status.Error(codes.AlreadyExists, "resource already exists")
	case database.IsForeignKeyViolation(err):
		return status.Error(codes.FailedPrecondition, "referenced resource does not exist")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	}
	logger.Error("storage operation failed", map[string]interface{}{"error": err.Error()})
	return status.Error(codes.Internal, "storage failure")
}

func invalidArgf(format string, args ...interface{}) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}
