package validation

import (
	"fmt"

	dErrors "streak/pkg/domain-errors"
)

// MaxBodySize caps JSON request bodies (64 KB).
const MaxBodySize = 64 * 1024

// MaxWebhookBodySize caps payment provider payloads.
const MaxWebhookBodySize = 256 * 1024

// String and collection limits shared by request types.
const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 4000
	MaxProofTextLength   = 4000
	MaxURLLength         = 2048
	MaxExternalIDLength  = 128
	MaxWinners           = 100
	MaxPageSize          = 200
	DefaultPageSize      = 50
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// ClampPageSize applies the default and upper bound to a caller-supplied limit.
func ClampPageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}
