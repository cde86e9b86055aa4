// Package fault classifies AWS call failures into service-side and client-side errors.
package fault

import (
	"context"
	"errors"
	"fmt"
	"net"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// ServiceError means the request reached AWS and was rejected or failed there.
type ServiceError struct {
	Op         string
	Code       string
	Message    string
	StatusCode int
	RequestID  string
	Err        error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s (status %d, request %s): %s", e.Op, e.Code, e.StatusCode, e.RequestID, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// ClientError means the request never got an answer from AWS:
// network failure, bad input, missing credentials, cancellation.
type ClientError struct {
	Op  string
	Err error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// Classify wraps err as a ServiceError or ClientError for operation op.
// nil stays nil and already classified errors are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var svc *ServiceError
	var cli *ClientError
	if errors.As(err, &svc) || errors.As(err, &cli) {
		return err
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return &ClientError{Op: op, Err: err}
	}

	se := &ServiceError{
		Op:      op,
		Code:    apiErr.ErrorCode(),
		Message: apiErr.ErrorMessage(),
		Err:     err,
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		se.StatusCode = respErr.HTTPStatusCode()
		se.RequestID = respErr.ServiceRequestID()
	}

	return se
}

// IsService reports whether err is, or wraps, a ServiceError.
func IsService(err error) bool {
	var svc *ServiceError
	return errors.As(err, &svc)
}

// IsClient reports whether err is, or wraps, a ClientError.
func IsClient(err error) bool {
	var cli *ClientError
	return errors.As(err, &cli)
}

// HasCode reports whether err is a ServiceError with the given error code.
func HasCode(err error, code string) bool {
	var svc *ServiceError
	if errors.As(err, &svc) {
		return svc.Code == code
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == code
	}
	return false
}

var transientCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"RequestThrottled":                       true,
	"RequestThrottledException":              true,
	"RequestLimitExceeded":                   true,
	"TooManyRequestsException":               true,
	"SlowDown":                               true,
	"ProvisionedThroughputExceededException": true,
	"RequestTimeout":                         true,
	"RequestTimeoutException":                true,
	"InternalError":                          true,
	"ServiceUnavailable":                     true,
}

// IsTransient reports whether retrying err has a chance of succeeding.
// Throttling, 5xx responses and network timeouts are transient.
// Cancellation never is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var svc *ServiceError
	if errors.As(err, &svc) {
		return transientCodes[svc.Code] || svc.StatusCode >= 500
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if transientCodes[apiErr.ErrorCode()] {
			return true
		}
		var respErr *awshttp.ResponseError
		return errors.As(err, &respErr) && respErr.HTTPStatusCode() >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Annotate adds the fault details of err to a log event.
func Annotate(e *zerolog.Event, err error) *zerolog.Event {
	e = e.Err(err)

	var svc *ServiceError
	if errors.As(err, &svc) {
		return e.Str("fault", "service").
			Str("op", svc.Op).
			Int("status_code", svc.StatusCode).
			Str("error_code", svc.Code).
			Str("request_id", svc.RequestID)
	}

	var cli *ClientError
	if errors.As(err, &cli) {
		return e.Str("fault", "client").Str("op", cli.Op)
	}

	return e
}
