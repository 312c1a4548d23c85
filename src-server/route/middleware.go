package route

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"passgate/src-server/apperr"
	"passgate/src-server/jwt"
	"passgate/src-server/model"
	"passgate/src-server/utils"
)

type ActorCtxKeyType string

const ActorCtxKey ActorCtxKeyType = "actor"

// AuthMiddleware resolves the bearer token to a user and stores it in the
// request context. Only users present in the users table get through.
func AuthMiddleware(as *utils.AppState, next func(http.ResponseWriter, *http.Request)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// extract bearer token from the Authorization header
		token := func() string {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return ""
			}
			return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}()
		if token == "" {
			writeError(w, apperr.New(apperr.KindUnauthorized, "auth", "Not authorized, no token"))
			return
		}

		payload, err := jwt.Decode(token, as.Config.GetJWTSecret())
		if err != nil {
			slog.Debug("rejected bearer token", "error", err)
			writeError(w, apperr.New(apperr.KindUnauthorized, "auth", "Not authorized, token failed"))
			return
		}

		startTimer := time.Now()
		user, err := model.GetUser(r.Context(), as.BunDB, payload.UserID)
		as.MetricChans.ObserveRead(time.Since(startTimer))
		switch {
		case model.IsNoRows(err):
			writeError(w, apperr.New(apperr.KindUnauthorized, "auth", "Not authorized, user not found"))
			return
		case err != nil:
			slog.Error("can't find user in DB", "error", err)
			writeError(w, apperr.Storage("auth", err))
			return
		}

		ctx := context.WithValue(r.Context(), ActorCtxKey, user)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole wraps next in AuthMiddleware and rejects users whose role is not
// listed.
func RequireRole(as *utils.AppState, roles []model.Role, next func(http.ResponseWriter, *http.Request)) func(http.ResponseWriter, *http.Request) {
	return AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			writeError(w, apperr.New(apperr.KindUnauthorized, "auth", "Not authorized"))
			return
		}
		role, err := model.ParseRole(string(actor.Role))
		if err != nil || !slices.Contains(roles, role) {
			writeError(w, apperr.New(apperr.KindForbidden, "auth", "Forbidden"))
			return
		}
		next(w, r)
	})
}

var (
	staffRoles = []model.Role{model.ROLE_STAFF, model.ROLE_ADMIN}
	adminRoles = []model.Role{model.ROLE_ADMIN}
)

func actorFrom(r *http.Request) (*model.User, bool) {
	user, ok := r.Context().Value(ActorCtxKey).(*model.User)
	return user, ok && user != nil
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging logs one line per request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration", time.Since(start))
	})
}
