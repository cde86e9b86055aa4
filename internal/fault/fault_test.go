package fault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sdkError builds an error shaped like the ones aws-sdk-go-v2 operations return.
func sdkError(status int, code, message, requestID string) error {
	return &smithy.OperationError{
		ServiceID:     "S3",
		OperationName: "PutObject",
		Err: &awshttp.ResponseError{
			ResponseError: &smithyhttp.ResponseError{
				Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
				Err:      &smithy.GenericAPIError{Code: code, Message: message, Fault: smithy.FaultClient},
			},
			RequestID: requestID,
		},
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify_ServiceError(t *testing.T) {
	err := Classify("put object", sdkError(403, "AccessDenied", "Access Denied", "req-123"))

	var svc *ServiceError
	require.True(t, errors.As(err, &svc))
	assert.Equal(t, "put object", svc.Op)
	assert.Equal(t, "AccessDenied", svc.Code)
	assert.Equal(t, "Access Denied", svc.Message)
	assert.Equal(t, 403, svc.StatusCode)
	assert.Equal(t, "req-123", svc.RequestID)
	assert.True(t, IsService(err))
	assert.False(t, IsClient(err))
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestClassify_APIErrorWithoutResponse(t *testing.T) {
	err := Classify("start instance", &smithy.GenericAPIError{Code: "IncorrectInstanceState", Message: "bad state"})

	var svc *ServiceError
	require.True(t, errors.As(err, &svc))
	assert.Equal(t, "IncorrectInstanceState", svc.Code)
	assert.Equal(t, 0, svc.StatusCode)
	assert.Empty(t, svc.RequestID)
}

func TestClassify_ClientError(t *testing.T) {
	cause := errors.New("dial tcp: no route to host")
	err := Classify("send message", cause)

	var cli *ClientError
	require.True(t, errors.As(err, &cli))
	assert.Equal(t, "send message", cli.Op)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsClient(err))
	assert.False(t, IsService(err))
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, Classify("noop", nil))
}

func TestClassify_AlreadyClassified(t *testing.T) {
	first := Classify("inner", errors.New("boom"))
	wrapped := fmt.Errorf("outer: %w", first)

	again := Classify("outer", wrapped)
	assert.Same(t, wrapped, again)

	var cli *ClientError
	require.True(t, errors.As(again, &cli))
	assert.Equal(t, "inner", cli.Op)
}

func TestHasCode(t *testing.T) {
	raw := sdkError(409, "BucketAlreadyOwnedByYou", "owned", "req-1")
	assert.True(t, HasCode(raw, "BucketAlreadyOwnedByYou"))
	assert.True(t, HasCode(Classify("create bucket", raw), "BucketAlreadyOwnedByYou"))
	assert.False(t, HasCode(raw, "NoSuchBucket"))
	assert.False(t, HasCode(errors.New("plain"), "BucketAlreadyOwnedByYou"))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"throttling", sdkError(400, "Throttling", "slow down", "r"), true},
		{"request limit", sdkError(503, "RequestLimitExceeded", "limit", "r"), true},
		{"server error", sdkError(500, "InternalFailure", "oops", "r"), true},
		{"classified throttling", Classify("op", sdkError(400, "SlowDown", "slow", "r")), true},
		{"classified 503", Classify("op", sdkError(503, "Unavailable", "down", "r")), true},
		{"access denied", sdkError(403, "AccessDenied", "no", "r"), false},
		{"classified access denied", Classify("op", sdkError(403, "AccessDenied", "no", "r")), false},
		{"network timeout", Classify("op", timeoutErr{}), true},
		{"plain client error", Classify("op", errors.New("bad input")), false},
		{"canceled", Classify("op", context.Canceled), false},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestAnnotate_ServiceError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	err := Classify("create bucket", sdkError(409, "BucketAlreadyExists", "taken", "req-9"))
	Annotate(logger.Error(), err).Msg("failed")

	out := buf.String()
	assert.Contains(t, out, `"fault":"service"`)
	assert.Contains(t, out, `"status_code":409`)
	assert.Contains(t, out, `"error_code":"BucketAlreadyExists"`)
	assert.Contains(t, out, `"request_id":"req-9"`)
}

func TestAnnotate_ClientError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	Annotate(logger.Error(), Classify("list buckets", errors.New("no network"))).Msg("failed")

	out := buf.String()
	assert.Contains(t, out, `"fault":"client"`)
	assert.Contains(t, out, `"op":"list buckets"`)
	assert.NotContains(t, out, "status_code")
}
