package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	goPhoneAuth "github.com/MrEthical07/goPhoneAuth"
	"github.com/MrEthical07/goPhoneAuth/internal/rate"
	"github.com/MrEthical07/goPhoneAuth/jwt"
	"github.com/MrEthical07/goPhoneAuth/metrics/export/prometheus"
	"github.com/MrEthical07/goPhoneAuth/middleware"
	"go.uber.org/zap"
)

// addPhonePurpose scopes codes that prove ownership of a number being
// attached to an existing account.
const addPhonePurpose = "add_phone"

const maxBodyBytes = 4 << 10

type server struct {
	engine    *goPhoneAuth.Engine
	tokens    *jwt.Manager
	limiter   *rate.Limiter
	logger    *zap.Logger
	returnOTP bool
	// ambiguous collapses login failures to 401 with the message only.
	ambiguous bool
}

type serverOptions struct {
	returnOTP bool
	ambiguous bool
}

func newServer(engine *goPhoneAuth.Engine, tokens *jwt.Manager, limiter *rate.Limiter, logger *zap.Logger, opts serverOptions) *server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &server{
		engine:    engine,
		tokens:    tokens,
		limiter:   limiter,
		logger:    logger.Named("http"),
		returnOTP: opts.returnOTP,
		ambiguous: opts.ambiguous,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /otp", s.handleIssueOTP)
	mux.HandleFunc("POST /login", s.handleLogin)

	guard := middleware.RequireSession(s.tokens)
	mux.Handle("POST /phones", guard(http.HandlerFunc(s.handleAddPhone)))
	mux.Handle("DELETE /phones", guard(http.HandlerFunc(s.handleRemovePhone)))

	mux.Handle("GET /metrics", prometheus.NewExporter(s.engine).Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

type issueOTPRequest struct {
	Phone   string `json:"phone"`
	Purpose string `json:"purpose"`
}

func (s *server) handleIssueOTP(w http.ResponseWriter, r *http.Request) {
	var body issueOTPRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Purpose != "" && body.Purpose != addPhonePurpose {
		writeError(w, http.StatusBadRequest, "unknown purpose")
		return
	}

	code, err := s.engine.IssuePhoneOTP(requestContext(r), body.Phone, body.Purpose)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	resp := map[string]string{"status": "sent"}
	if s.returnOTP {
		resp["otp"] = code
	}
	writeJSON(w, http.StatusAccepted, resp)
}

type loginRequest struct {
	Phone          string `json:"phone"`
	OTP            string `json:"otp"`
	ExpectedUserID string `json:"expectedUserId"`
}

type loginResponse struct {
	Token   string `json:"token"`
	UserID  string `json:"userId"`
	Created bool   `json:"created"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	ctx := requestContext(r)
	ip := clientIP(r)

	number, _ := s.engine.SanitizePhone(body.Phone)
	if number != "" {
		if err := s.limiter.Check(ctx, number, ip); err != nil {
			s.writeLimiterError(w, err)
			return
		}
	}

	result, err := s.engine.Login(ctx, goPhoneAuth.Credentials{
		goPhoneAuth.CredentialPhone:          body.Phone,
		goPhoneAuth.CredentialOTP:            body.OTP,
		goPhoneAuth.CredentialExpectedUserID: body.ExpectedUserID,
	})
	if err != nil {
		if errors.Is(err, goPhoneAuth.ErrNoLoginStrategy) {
			writeError(w, http.StatusBadRequest, "phone and otp are required")
			return
		}
		s.writeEngineError(w, err)
		return
	}

	if result.Error != nil {
		if number != "" && !result.Error.Verified() {
			if err := s.limiter.Fail(ctx, number, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
				s.logger.Warn("record failed verification", zap.Error(err))
			}
		}
		s.writeLoginError(w, result.Error)
		return
	}

	if err := s.limiter.Reset(ctx, number); err != nil {
		s.logger.Warn("reset verification attempts", zap.Error(err))
	}
	token, err := s.tokens.Issue(result.UserID, number, result.Created)
	if err != nil {
		s.logger.Error("issue session token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, loginResponse{Token: token, UserID: result.UserID, Created: result.Created})
}

type phoneRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

// handleAddPhone attaches a number to the caller's account. With an OTP for
// the add_phone purpose the number is attached verified. Ownership conflicts
// are rejected before the code is checked so a refused number keeps its code;
// only a registration racing this request can still consume it.
func (s *server) handleAddPhone(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	var body phoneRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	ctx := requestContext(r)
	ip := clientIP(r)

	if err := s.engine.CheckPhoneAvailable(ctx, claims.UID, body.Phone); err != nil {
		s.writeEngineError(w, err)
		return
	}

	verified := false
	if body.OTP != "" {
		number, _ := s.engine.SanitizePhone(body.Phone)
		if err := s.limiter.Check(ctx, number, ip); err != nil {
			s.writeLimiterError(w, err)
			return
		}

		if _, err := s.engine.VerifyPhoneOTP(ctx, goPhoneAuth.VerifyRequest{
			Phone:   body.Phone,
			OTP:     body.OTP,
			Purpose: addPhonePurpose,
		}); err != nil {
			if errors.Is(err, goPhoneAuth.ErrIncorrectOTP) || errors.Is(err, goPhoneAuth.ErrNoOTPSet) {
				if err := s.limiter.Fail(ctx, number, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
					s.logger.Warn("record failed verification", zap.Error(err))
				}
			}
			s.writeEngineError(w, err)
			return
		}

		if err := s.limiter.Reset(ctx, number); err != nil {
			s.logger.Warn("reset verification attempts", zap.Error(err))
		}
		verified = true
	}

	if err := s.engine.AddPhone(ctx, claims.UID, body.Phone, verified); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "added", "verified": verified})
}

func (s *server) handleRemovePhone(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	var body phoneRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := s.engine.RemovePhone(requestContext(r), claims.UID, body.Phone); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeLoginError renders a failed login. In ambiguous mode every
// non-internal failure answers 401 and keeps only code, message and the
// verified flag, so kind-specific details such as a conflicting account id
// stay server side.
func (s *server) writeLoginError(w http.ResponseWriter, le *goPhoneAuth.LoginError) {
	if le.Code == goPhoneAuth.LoginErrMultipleUsers {
		s.logger.Error("phone verified on multiple accounts", zap.Any("details", le.Details))
	}

	status := loginErrorStatus(le)
	if s.ambiguous && status != http.StatusInternalServerError {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": goPhoneAuth.LoginError{
			Code:    le.Code,
			Message: le.Message,
			Details: map[string]any{"verified": le.Verified()},
		}})
		return
	}
	writeJSON(w, status, map[string]any{"error": le})
}

func (s *server) writeEngineError(w http.ResponseWriter, err error) {
	status := engineErrorStatus(err)
	switch status {
	case http.StatusInternalServerError:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, status, "internal server error")
	case http.StatusServiceUnavailable:
		s.logger.Warn("backend unavailable", zap.Error(err))
		writeError(w, status, "service unavailable")
	default:
		writeError(w, status, err.Error())
	}
}

func (s *server) writeLimiterError(w http.ResponseWriter, err error) {
	if errors.Is(err, rate.ErrRateLimited) {
		writeError(w, http.StatusTooManyRequests, "too many attempts")
		return
	}
	s.logger.Error("verification limiter", zap.Error(err))
	writeError(w, http.StatusServiceUnavailable, "service unavailable")
}

func engineErrorStatus(err error) int {
	switch {
	case errors.Is(err, goPhoneAuth.ErrInvalidPhone), errors.Is(err, goPhoneAuth.ErrInvalidOTP):
		return http.StatusBadRequest
	case errors.Is(err, goPhoneAuth.ErrNoOTPSet), errors.Is(err, goPhoneAuth.ErrIncorrectOTP):
		return http.StatusUnauthorized
	case errors.Is(err, goPhoneAuth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, goPhoneAuth.ErrPhoneAlreadyRegistered),
		errors.Is(err, goPhoneAuth.ErrMultipleUsers),
		errors.Is(err, goPhoneAuth.ErrUnexpectedUser):
		return http.StatusConflict
	case errors.Is(err, goPhoneAuth.ErrOTPStoreUnavailable), errors.Is(err, goPhoneAuth.ErrAccountStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func loginErrorStatus(le *goPhoneAuth.LoginError) int {
	switch le.Code {
	case goPhoneAuth.LoginErrInvalidPhone:
		return http.StatusBadRequest
	case goPhoneAuth.LoginErrNoOTPSet, goPhoneAuth.LoginErrIncorrectOTP:
		return http.StatusUnauthorized
	case goPhoneAuth.LoginErrMultipleUsers, goPhoneAuth.LoginErrUnexpectedUser, goPhoneAuth.LoginErrPhoneAlreadyRegistered:
		return http.StatusConflict
	case goPhoneAuth.LoginErrUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func requestContext(r *http.Request) context.Context {
	return goPhoneAuth.WithClientIP(r.Context(), clientIP(r))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
