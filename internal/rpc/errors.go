package rpc

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotConnected     = errors.New("rpc client not connected")
	ErrAlreadyConnected = errors.New("rpc client already connected")
	ErrServerStopped    = errors.New("rpc server stopped")
)

// Transport operations reported by TransportError.
const (
	OpConnect = "connect"
	OpSend    = "send"
	OpReceive = "receive"
)

// TransportError reports a failure of the connection itself. The client is
// disconnected when one is returned.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FieldViolation names one rejected request field.
type FieldViolation struct {
	Field       string
	Description string
}

// ValidationError is a structured rejection of a request payload. Handlers
// return it to produce codes.InvalidArgument with a BadRequest detail, and
// the client reconstructs it from that status.
type ValidationError struct {
	Message    string
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed: " + e.Message
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Description
	}
	return fmt.Sprintf("validation failed: %s (%s)", e.Message, strings.Join(parts, "; "))
}

// GRPCStatus lets the gRPC server translate the error without a wrapper.
func (e *ValidationError) GRPCStatus() *status.Status {
	st := status.New(codes.InvalidArgument, e.Message)
	if len(e.Violations) == 0 {
		return st
	}

	br := &errdetails.BadRequest{}
	for _, v := range e.Violations {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       v.Field,
			Description: v.Description,
		})
	}
	detailed, err := st.WithDetails(br)
	if err != nil {
		return st
	}
	return detailed
}

func validationFromStatus(st *status.Status) *ValidationError {
	ve := &ValidationError{Message: st.Message()}
	for _, d := range st.Details() {
		br, ok := d.(*errdetails.BadRequest)
		if !ok {
			continue
		}
		for _, fv := range br.GetFieldViolations() {
			ve.Violations = append(ve.Violations, FieldViolation{
				Field:       fv.GetField(),
				Description: fv.GetDescription(),
			})
		}
	}
	return ve
}

// RemoteError is any other status returned by the server. The connection is
// kept.
type RemoteError struct {
	Code    codes.Code
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc remote error %s: %s", e.Code, e.Message)
}

func (e *RemoteError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

// classify maps a failed call to the relay error taxonomy.
func classify(addr string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &TransportError{Op: OpSend, Addr: addr, Err: err}
	}

	switch st.Code() {
	case codes.Unavailable, codes.Canceled, codes.Aborted:
		return &TransportError{Op: OpSend, Addr: addr, Err: err}
	case codes.DeadlineExceeded:
		return &TransportError{Op: OpReceive, Addr: addr, Err: err}
	case codes.InvalidArgument:
		return validationFromStatus(st)
	default:
		return &RemoteError{Code: st.Code(), Message: st.Message()}
	}
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsValidation reports whether err is a structured validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
