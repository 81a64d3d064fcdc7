package handlers

import (
	"errors"

	"github.com/spec-kit/storefront-api/internal/auth"
	"github.com/spec-kit/storefront-api/internal/repository"
	apperrors "github.com/spec-kit/storefront-api/pkg/util"
)

func mapError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("user", nil)
	}
	return auth.AsDomainError(err)
}
