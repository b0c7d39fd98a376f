package grpc

import (
	"errors"

	"github.com/DRSN-tech/order-backend/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCErrorResponse переводит ошибку usecase в статус gRPC.
func GRPCErrorResponse(err error) error {
	switch e.KindOf(err) {
	case e.KindValidation, e.KindIllegalTransition:
		return status.Error(codes.InvalidArgument, err.Error())
	case e.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case e.KindInsufficientStock, e.KindForbiddenState:
		return status.Error(codes.FailedPrecondition, err.Error())
	case e.KindQuotaExceeded:
		return status.Error(codes.ResourceExhausted, err.Error())
	}

	switch {
	case errors.Is(err, e.ErrStatusBadRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}
