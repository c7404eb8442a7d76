package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Типизированные ошибки для маппинга на HTTP-коды в delivery-слое.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrFeedbackNotFound   = errors.New("feedback not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// isID: идентификаторы в хранилище только UUID, остальное заведомо не найдётся.
func isID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// validationError сворачивает ошибки validator в одно сообщение.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalidArgument("%v", err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
	}

	return invalidArgument("%s", strings.Join(parts, "; "))
}
