package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
	"unicode"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/medbuddy/internal/audit"
	"github.com/alfredjeanlab/medbuddy/internal/idgen"
)

// RequestIDHeader carries the request id on HTTP responses. The same name,
// lower-cased, is used as gRPC metadata.
const RequestIDHeader = "X-Request-ID"

const requestIDMetadata = "x-request-id"

// maxRequestIDLen bounds a caller-supplied request id.
const maxRequestIDLen = 64

// healthCheckMethod is exempt from auth so liveness checks work without a
// token.
const healthCheckMethod = "/grpc.health.v1.Health/Check"

// healthPath is the HTTP route exempt from auth.
const healthPath = "/v1/health"

// requestID returns the caller's id if it is usable, else a fresh one.
func requestID(supplied string) string {
	if supplied == "" || len(supplied) > maxRequestIDLen {
		return idgen.Request()
	}
	for _, r := range supplied {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return idgen.Request()
		}
	}
	return supplied
}

func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(requestIDMetadata); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// loggingInterceptor tags each unary RPC with a request id, returns it in
// the response header, and logs and audits the outcome.
func (s *Server) loggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	id := requestID(incomingRequestID(ctx))
	if err := grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadata, id)); err != nil {
		s.logger.Debug("set request id header", "request_id", id, "err", err)
	}

	start := time.Now()
	resp, err := handler(ctx, req)
	duration := time.Since(start)

	code := status.Code(err)
	logger := s.logger.With("request_id", id, "method", info.FullMethod, "code", code.String(), "duration", duration)
	outcome := audit.OutcomeOK
	if err != nil {
		outcome = audit.OutcomeFailed
		logger.Error("rpc completed", "error", err)
	} else {
		logger.Info("rpc completed")
	}
	s.recorder.Record(ctx, audit.ComponentServer, "rpc", outcome,
		"request_id", id,
		"method", info.FullMethod,
		"code", code.String(),
		"duration_ms", duration.Milliseconds(),
	)
	return resp, err
}

// recoveryInterceptor turns a panicking handler into codes.Internal.
func (s *Server) recoveryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic recovered in gRPC handler",
				"method", info.FullMethod,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

var (
	errMissingAuth   = errors.New("missing authorization header")
	errInvalidScheme = errors.New("invalid authorization scheme")
	errInvalidToken  = errors.New("invalid token")
)

// checkBearer validates an Authorization header value against token.
func checkBearer(header, token string) error {
	if header == "" {
		return errMissingAuth
	}
	provided, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return errInvalidScheme
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
		return errInvalidToken
	}
	return nil
}

// AuthInterceptor returns a gRPC unary interceptor requiring a bearer token
// in the "authorization" metadata. An empty token disables auth. Health
// checks are always exempt.
func AuthInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if token == "" || info.FullMethod == healthCheckMethod {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		var header string
		if vals := md.Get("authorization"); len(vals) > 0 {
			header = vals[0]
		}
		if err := checkBearer(header, token); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(ctx, req)
	}
}

// AuthMiddleware requires a bearer token on every request except
// GET /v1/health. An empty token disables auth.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == healthPath {
			next.ServeHTTP(w, r)
			return
		}
		if err := checkBearer(r.Header.Get("Authorization"), token); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// requestMiddleware is the HTTP counterpart of loggingInterceptor. Health
// checks are not audited.
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r.Header.Get(RequestIDHeader))
		w.Header().Set(RequestIDHeader, id)

		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sw, r)
		duration := time.Since(start)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		if r.URL.Path == healthPath {
			return
		}
		route := r.Method + " " + r.URL.Path
		outcome := audit.OutcomeOK
		if sw.status >= http.StatusBadRequest {
			outcome = audit.OutcomeFailed
		}
		s.logger.Info("http request completed",
			"request_id", id,
			"route", route,
			"status", sw.status,
			"duration", duration,
		)
		s.recorder.Record(r.Context(), audit.ComponentServer, "http", outcome,
			"request_id", id,
			"route", route,
			"status", sw.status,
			"duration_ms", duration.Milliseconds(),
		)
	})
}
