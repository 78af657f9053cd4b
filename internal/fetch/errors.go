package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nao1215/imgrescue/internal/model"
)

// Body errors. They classify as model.ErrorKindDecode.
var (
	// ErrEmptyBody is returned when a successful response carries no bytes.
	ErrEmptyBody = errors.New("response body is empty")

	// ErrBodyTooLarge is returned when the body exceeds the size cap.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrIncompleteBody is returned when fewer bytes than declared arrive.
	ErrIncompleteBody = errors.New("response body is incomplete")
)

// StatusError is returned for non-2xx responses. Its code ends up in the
// outcome's StatusCode and in the status column of the failure ledger; 4xx
// codes end the direct phase at once, 5xx codes are retried.
type StatusError struct {
	Code int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
}

// classifyStatus maps a non-2xx status code to an error kind.
func classifyStatus(code int) model.ErrorKind {
	switch {
	case code >= 400 && code < 500:
		return model.ErrorKindClient
	default:
		return model.ErrorKindServer
	}
}

// classifyError maps a request or read error to an error kind.
func classifyError(err error) model.ErrorKind {
	switch {
	case err == nil:
		return model.ErrorKindNone
	case errors.Is(err, ErrEmptyBody), errors.Is(err, ErrBodyTooLarge), errors.Is(err, ErrIncompleteBody):
		return model.ErrorKindDecode
	case isTLSError(err):
		return model.ErrorKindTLS
	default:
		return model.ErrorKindTransport
	}
}

// isTLSError reports whether err stems from certificate validation or the
// TLS handshake.
func isTLSError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	var recordErr tls.RecordHeaderError
	var alertErr tls.AlertError

	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &unknownAuthority),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr),
		errors.As(err, &recordErr),
		errors.As(err, &alertErr):
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "tls: ") || strings.Contains(msg, "x509: ")
}

// isCanceled reports whether err comes from the run being stopped rather
// than from the per-attempt timeout.
func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
