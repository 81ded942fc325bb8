package kb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// Knowledge base errors.
var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrUnavailable   = errors.New("knowledge base temporarily unavailable")
	ErrJobFailed     = errors.New("ingestion job did not complete")
)

// MissingConfigError lists required settings that are unset.
type MissingConfigError struct {
	Names []string
}

func (e *MissingConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Names, ", ")
}

// BedrockError wraps a failure reported by the AWS API or SDK.
type BedrockError struct {
	Op  string
	Err error
}

func (e *BedrockError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BedrockError) Unwrap() error {
	return e.Err
}

// IsBedrockError reports whether err came from the AWS side.
func IsBedrockError(err error) bool {
	var be *BedrockError
	return errors.As(err, &be)
}

// classify turns an SDK error into a BedrockError when it came from AWS.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	var opErr *smithy.OperationError

	if errors.As(err, &apiErr) || errors.As(err, &opErr) {
		return &BedrockError{Op: op, Err: err}
	}

	return err
}
