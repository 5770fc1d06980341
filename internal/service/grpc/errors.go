package grpcsvc

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderdesk/internal/blob"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/dashboard"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/submission"
)

// StatusFromError переводит доменную ошибку в gRPC-статус. Неизвестные ошибки логируются и скрываются за Internal.
func StatusFromError(logger *log.Entry, operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code, msg := classify(err)
	entry := logger.WithError(err).WithField("operation", operation)
	if step, ok := submission.FailedStep(err); ok {
		entry = entry.WithField("step", step)
	}
	if code == codes.Internal {
		entry.Error("request failed")
		return status.Error(codes.Internal, operation+" failed")
	}
	entry.WithField("code", code.String()).Debug("request rejected")
	return status.Error(code, msg)
}

func classify(err error) (codes.Code, string) {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded, err.Error()
	case domain.IsNotFound(err), errors.Is(err, blob.ErrNotFound):
		return codes.NotFound, err.Error()
	case domain.IsValidation(err):
		return codes.InvalidArgument, err.Error()
	case errors.Is(err, domain.ErrAgencyInUse):
		return codes.FailedPrecondition, domain.AgencyInUseMessage
	case domain.IsConstraintViolation(err):
		if step, ok := submission.FailedStep(err); ok {
			return codes.FailedPrecondition, submissionFailedMessage(step)
		}
		return codes.FailedPrecondition, err.Error()
	case domain.IsVersionConflict(err),
		errors.Is(err, domain.ErrSubmissionInProgress),
		errors.Is(err, domain.ErrAlreadyExists):
		return codes.Aborted, err.Error()
	case domain.IsFetchFailure(err):
		return codes.Unavailable, err.Error()
	case errors.Is(err, dashboard.ErrExportDisabled):
		return codes.Unimplemented, err.Error()
	default:
		return codes.Internal, err.Error()
	}
}

// submissionFailedMessage не раскрывает текст ошибки хранилища: оператору важен шаг и то, что корзина цела.
func submissionFailedMessage(step domain.SubmissionStep) string {
	return fmt.Sprintf("order submission failed at step %s, cart kept; refresh the catalog and retry", step)
}
