package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/response"
)

// Key-bearing headers. Presence of either selects the API-key strategy.
const (
	HeaderAPIKey      = "X-API-Key"
	HeaderAdminAPIKey = "X-Admin-API-Key"
)

// Verifier resolves a session access token to an account id.
type Verifier interface {
	VerifyAccessToken(ctx context.Context, token string) (string, error)
}

// AccountFinder loads the account behind a verified session.
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*entity.Account, error)
}

// Outcome is the result of one authentication decision: APIKeyPrincipal,
// SessionPrincipal or Rejected.
type Outcome interface {
	outcome()
}

type APIKeyPrincipal struct{ Principal }

type SessionPrincipal struct{ Principal }

// Rejected carries the response the gateway sends instead of calling the
// handler.
type Rejected struct {
	Status  int
	Code    response.ErrorCode
	Message string
}

func (APIKeyPrincipal) outcome()  {}
func (SessionPrincipal) outcome() {}
func (Rejected) outcome()         {}

// Selector picks exactly one strategy per request.
type Selector struct {
	keyDigest  [sha256.Size]byte
	configured bool
	verifier   Verifier
	accounts   AccountFinder
	logger     *zap.SugaredLogger
}

// NewSelector builds a Selector. An empty apiKey leaves the key strategy
// unconfigured: requests that present a key get CONFIGURATION_ERROR.
func NewSelector(apiKey string, verifier Verifier, accounts AccountFinder, logger *zap.SugaredLogger) *Selector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Selector{verifier: verifier, accounts: accounts, logger: logger}
	if apiKey != "" {
		s.keyDigest = sha256.Sum256([]byte(apiKey))
		s.configured = true
	}
	return s
}

// Decide authenticates r. It never calls both strategies.
func (s *Selector) Decide(r *http.Request) Outcome {
	if key, ok := presentedKey(r.Header); ok {
		return s.byAPIKey(r, key)
	}
	return s.bySession(r)
}

func presentedKey(h http.Header) (string, bool) {
	for _, name := range []string{HeaderAPIKey, HeaderAdminAPIKey} {
		if vals := h.Values(name); len(vals) > 0 {
			return strings.TrimSpace(vals[0]), true
		}
	}
	return "", false
}

func (s *Selector) byAPIKey(r *http.Request, key string) Outcome {
	log := s.logger.With(requestFields(r)...).With("strategy", string(MethodAPIKey))

	if !s.configured {
		log.Errorw("admin api key is not configured")
		return s.reject(MethodAPIKey, http.StatusInternalServerError, response.CodeConfiguration, "API key not configured")
	}
	if key == "" {
		log.Warnw("missing api key in request headers")
		return s.reject(MethodAPIKey, http.StatusUnauthorized, response.CodeMissingAPIKey, "API key required. Provide X-API-Key header")
	}
	digest := sha256.Sum256([]byte(key))
	if subtle.ConstantTimeCompare(digest[:], s.keyDigest[:]) != 1 {
		log.Warnw("invalid api key", "providedKey", Redact(key))
		return s.reject(MethodAPIKey, http.StatusUnauthorized, response.CodeInvalidAPIKey, "Invalid API key")
	}

	log.Infow("api key authentication successful")
	metrics.AuthDecisionsTotal.WithLabelValues(string(MethodAPIKey), "accepted").Inc()
	return APIKeyPrincipal{ServicePrincipal()}
}

func (s *Selector) bySession(r *http.Request) Outcome {
	log := s.logger.With(requestFields(r)...).With("strategy", string(MethodSession))

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok || s.verifier == nil {
		log.Warnw("missing session token")
		return s.reject(MethodSession, http.StatusUnauthorized, response.CodeUnauthenticated, "Authentication required")
	}
	accountID, err := s.verifier.VerifyAccessToken(r.Context(), token)
	if err != nil {
		log.Warnw("invalid session token", "err", err)
		return s.reject(MethodSession, http.StatusUnauthorized, response.CodeUnauthenticated, "Invalid or expired session")
	}
	acct, err := s.accounts.FindByID(r.Context(), accountID)
	if errors.Is(err, repo.ErrNotFound) {
		log.Warnw("session account not found", "userId", accountID)
		return s.reject(MethodSession, http.StatusUnauthorized, response.CodeUnauthenticated, "Invalid or expired session")
	}
	if err != nil {
		log.Errorw("session account lookup failed", "userId", accountID, "err", err)
		return s.reject(MethodSession, http.StatusInternalServerError, response.CodeInternal, "Something went wrong")
	}
	if acct.Role != entity.RoleAdmin {
		log.Warnw("session user is not an admin", "userId", acct.ID, "role", acct.Role)
		return s.reject(MethodSession, http.StatusForbidden, response.CodeInsufficientRole, "Admin access required")
	}

	log.Infow("session authentication successful", "userId", acct.ID)
	metrics.AuthDecisionsTotal.WithLabelValues(string(MethodSession), "accepted").Inc()
	return SessionPrincipal{principalFromAccount(acct)}
}

func (s *Selector) reject(m Method, status int, code response.ErrorCode, msg string) Rejected {
	metrics.AuthDecisionsTotal.WithLabelValues(string(m), string(code)).Inc()
	return Rejected{Status: status, Code: code, Message: msg}
}

// Middleware runs Decide and either attaches the principal or writes the
// rejection.
func (s *Selector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch o := s.Decide(r).(type) {
		case APIKeyPrincipal:
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), o.Principal)))
		case SessionPrincipal:
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), o.Principal)))
		case Rejected:
			response.WriteError(w, o.Status, o.Code, o.Message)
		default:
			response.WriteInternal(w)
		}
	})
}

// Redact keeps a short prefix of a secret for logs: at most 8 characters and
// never more than half of it.
func Redact(secret string) string {
	runes := []rune(secret)
	n := len(runes) / 2
	if n > 8 {
		n = 8
	}
	return string(runes[:n]) + "***"
}

func bearerToken(h string) (string, bool) {
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

func requestFields(r *http.Request) []any {
	return []any{
		"ip", ClientIP(r),
		"userAgent", r.UserAgent(),
		"endpoint", r.Method + " " + r.URL.Path,
	}
}

// ClientIP prefers the first X-Forwarded-For hop, then the peer address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
