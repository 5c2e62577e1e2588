package actionkit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware provides HTTP middleware for action checks.
type Middleware struct {
	service      *Service
	getAuthority func(*http.Request) (Authority, bool)
	errorHandler func(http.ResponseWriter, *http.Request, error)
	logger       *slog.Logger
}

// MiddlewareOption configures the Middleware.
type MiddlewareOption func(*Middleware)

// NewMiddleware creates a new Middleware instance.
//
// Example:
//
//	mw := actionkit.NewMiddleware(service,
//	    actionkit.WithAuthorityExtractor(func(r *http.Request) (actionkit.Authority, bool) {
//	        return sessionAuthority(r)
//	    }),
//	)
func NewMiddleware(service *Service, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		service:      service,
		getAuthority: defaultGetAuthority,
		errorHandler: defaultErrorHandler,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithAuthorityExtractor sets a custom function to extract the authority from request.
func WithAuthorityExtractor(fn func(*http.Request) (Authority, bool)) MiddlewareOption {
	return func(m *Middleware) {
		m.getAuthority = fn
	}
}

// WithErrorHandler sets a custom error handler for middleware.
func WithErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) MiddlewareOption {
	return func(m *Middleware) {
		m.errorHandler = fn
	}
}

// WithMiddlewareLogger sets the logger.
func WithMiddlewareLogger(logger *slog.Logger) MiddlewareOption {
	return func(m *Middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func defaultGetAuthority(r *http.Request) (Authority, bool) {
	return GetAuthority(r.Context())
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNoAuthority):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case IsUnauthorized(err):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case IsInvalidTarget(err):
		http.Error(w, "Bad Request", http.StatusBadRequest)
	default:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// TargetResolver extracts the target of a request.
type TargetResolver func(*http.Request) (Target, error)

// TargetFromParam creates a TargetResolver that reads the target id from a
// chi URL parameter, falling back to the standard library path value.
//
// Example:
//
//	// For route /projects/{projectID}
//	mw.RequireAction("OPEN", actionkit.TargetFromParam("project", "projectID"))
func TargetFromParam(targetType, paramName string) TargetResolver {
	return func(r *http.Request) (Target, error) {
		id := chi.URLParam(r, paramName)
		if id == "" {
			id = r.PathValue(paramName)
		}
		if id == "" {
			return nil, NewError(ErrInvalidTarget, "target ID not found in request").WithTarget(targetType)
		}
		return NewInstance(targetType, id), nil
	}
}

// TargetFromQuery creates a TargetResolver that reads the target id from a query parameter.
//
// Example:
//
//	// For route /api/files?project_id=proj_123
//	mw.RequireAction("OPEN", actionkit.TargetFromQuery("project", "project_id"))
func TargetFromQuery(targetType, queryParam string) TargetResolver {
	return func(r *http.Request) (Target, error) {
		id := r.URL.Query().Get(queryParam)
		if id == "" {
			return nil, NewError(ErrInvalidTarget, "target ID not found in query").WithTarget(targetType)
		}
		return NewInstance(targetType, id), nil
	}
}

// TargetLoader creates a TargetResolver that loads the target, with its
// state, by the id found in a chi URL parameter. A load error is reported as
// an invalid target.
//
// Example:
//
//	mw.RequireAction("DELETE", actionkit.TargetLoader("entryID", entries.Load))
func TargetLoader(paramName string, load func(ctx context.Context, id string) (Target, error)) TargetResolver {
	return func(r *http.Request) (Target, error) {
		id := chi.URLParam(r, paramName)
		if id == "" {
			id = r.PathValue(paramName)
		}
		if id == "" {
			return nil, NewError(ErrInvalidTarget, "target ID not found in request")
		}
		target, err := load(r.Context(), id)
		if err != nil || target == nil {
			return nil, NewError(ErrInvalidTarget, "target could not be loaded").WithTarget(id)
		}
		return target, nil
	}
}

// RequireAction creates middleware that requires an action on the request's target.
//
// Example:
//
//	router.With(mw.RequireAction("EDIT_DETAILS", actionkit.TargetFromParam("project", "projectID"))).
//	    Put("/projects/{projectID}", updateProjectHandler)
func (m *Middleware) RequireAction(actionID string, resolver TargetResolver) func(http.Handler) http.Handler {
	return m.require(resolver, func(allowed *ActionSet) bool {
		return allowed.Contains(actionID)
	})
}

// RequireAnyAction creates middleware that requires any of the actions on the request's target.
//
// Example:
//
//	router.With(mw.RequireAnyAction([]string{"OPEN", "EDIT_DETAILS"}, resolver)).
//	    Get("/projects/{projectID}", getProjectHandler)
func (m *Middleware) RequireAnyAction(actionIDs []string, resolver TargetResolver) func(http.Handler) http.Handler {
	return m.require(resolver, func(allowed *ActionSet) bool {
		for _, id := range actionIDs {
			if allowed.Contains(id) {
				return true
			}
		}
		return false
	})
}

func (m *Middleware) require(resolver TargetResolver, allow func(*ActionSet) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authority, ok := m.getAuthority(r)
			if !ok {
				m.errorHandler(w, r, ErrNoAuthority)
				return
			}

			target, err := resolver(r)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			checker := m.service.GetChecker(authority)
			if !allow(checker.AllowedActions(ctx, target)) {
				m.logger.Debug("action denied",
					"authority", authority.ID, "target", target.TargetID(), "request_id", GetRequestID(ctx))
				m.errorHandler(w, r, NewError(ErrUnauthorized, "missing required action").
					WithTarget(target.TargetID()).
					WithAuthority(authority.ID))
				return
			}

			ctx = WithChecker(ctx, checker)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadChecker creates middleware that loads the authority's Checker into context.
// Use this when you want to do action checks in the handler rather than middleware.
//
// Example:
//
//	router.With(mw.LoadChecker()).Get("/dashboard", dashboardHandler)
//
//	func dashboardHandler(w http.ResponseWriter, r *http.Request) {
//	    checker := actionkit.FromContext(r.Context())
//	    if checker.Can(r.Context(), project, "EDIT_DETAILS") {
//	        // Show edit features
//	    }
//	}
func (m *Middleware) LoadChecker() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authority, ok := m.getAuthority(r)
			if !ok {
				// No authority, continue without checker
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithChecker(r.Context(), m.service.GetChecker(authority))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InjectRequestID creates middleware that copies the X-Request-ID header into
// the context for log correlation.
func (m *Middleware) InjectRequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-Request-ID"); id != "" {
				r = r.WithContext(WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
