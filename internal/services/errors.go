package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks infrastructure failures expected to succeed on retry.
	ErrTransient = errors.New("transient failure")
	// ErrPersistent marks failures that will not clear without intervention.
	ErrPersistent = errors.New("persistent failure")
	// ErrInternal marks invariant violations inside the pipeline itself.
	// Internal errors are never auto-retried.
	ErrInternal = errors.New("internal error")
	// ErrValidation marks malformed collaborator input.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a missing search or record.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrPersistent
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether the error carries the transient marker.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsInternal reports whether the error carries the internal marker.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

// Message extracts the human-readable portion of a wrapped stage error,
// stripping the sentinel prefix when present.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	for _, marker := range []error{ErrTransient, ErrPersistent, ErrInternal, ErrValidation, ErrConfiguration, ErrNotFound} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(msg, prefix))
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
