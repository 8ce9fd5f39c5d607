package grpcsvc

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

var validationErrors = []error{
	domain.ErrOrderIDRequired,
	domain.ErrItemsRequired,
	domain.ErrItemSKURequired,
	domain.ErrItemQtyInvalid,
	domain.ErrItemPriceInvalid,
	domain.ErrStatusInvalid,
}

// codeFor сопоставляет доменную ошибку коду gRPC.
func codeFor(err error) codes.Code {
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}

	var validationErr validator.ValidationErrors
	switch {
	case errors.As(err, &validationErr):
		return codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, domain.ErrOrderNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrOrderExists):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrOrderVersionConflict):
		return codes.Aborted
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrOrderNotPaid),
		errors.Is(err, domain.ErrPaymentDeclined):
		return codes.FailedPrecondition
	case domain.IsTemporary(err):
		return codes.Unavailable
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return codes.InvalidArgument
		}
	}
	return codes.Internal
}

// toStatus переводит ошибку сервиса в gRPC status. Внутренние ошибки не раскрываются клиенту.
func (s *OrderServer) toStatus(err error, method, orderID string) error {
	if err == nil {
		return nil
	}

	code := codeFor(err)
	entry := s.logger.WithError(err).WithFields(log.Fields{
		"method":   method,
		"order_id": orderID,
		"code":     code.String(),
	})
	if code == codes.Internal {
		entry.Error("request failed")
		return status.Error(codes.Internal, "internal error")
	}
	entry.Debug("request rejected")
	return status.Error(code, err.Error())
}
