package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// errorKinds is checked in order; ErrAlreadyProcessed also matches
// ErrNotFound so it must come first.
var errorKinds = []struct {
	err    error
	status int
	code   codes.Code
}{
	{domain.ErrAlreadyProcessed, http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrNotFound, http.StatusNotFound, codes.NotFound},
	{domain.ErrInsufficientStock, http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrInvalidArgument, http.StatusBadRequest, codes.InvalidArgument},
	{domain.ErrAlreadyExists, http.StatusConflict, codes.AlreadyExists},
	{domain.ErrDuplicateRequest, http.StatusConflict, codes.AlreadyExists},
	{domain.ErrDependencyUnavailable, http.StatusServiceUnavailable, codes.Unavailable},
}

func httpStatus(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, err.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

func grpcCode(err error) (codes.Code, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.code, err.Error()
		}
	}
	return codes.Internal, "internal error"
}
