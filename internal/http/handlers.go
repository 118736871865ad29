package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cashboxes/internal/core"
	applog "cashboxes/internal/log"
	"cashboxes/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports whether templates are loaded and the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if len(s.templates) == 0 {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.submitLimit.ActiveClients(),
		"rejected":       s.submitLimit.GetMetrics().Rejected,
	}
	checks["requests"] = s.trace.GetMetrics().TotalRequests

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleOverview shows the user's balance in every cash box.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request, user core.User) {
	overview, err := s.ledger.Overview(r.Context(), user)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, pageOverview, pageData{Title: "Overview", User: user, Content: overview})
}

func (s *Server) handleCashBoxes(w http.ResponseWriter, r *http.Request, user core.User) {
	search := searchParam(r)
	boxes, err := s.ledger.CashBoxes(r.Context(), search)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, pageCashBoxes, pageData{
		Title: "Cash boxes",
		User:  user,
		Content: struct {
			Search string
			Boxes  []services.BoxBalance
		}{Search: search, Boxes: boxes},
	})
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request, user core.User) {
	list, err := s.ledger.ListInvoices(r.Context(), r.PathValue("name"), searchParam(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, pageInvoices, pageData{Title: list.Box.Name, User: user, Content: list})
}

func (s *Server) handleOwnTransactions(w http.ResponseWriter, r *http.Request, user core.User) {
	s.renderTransactions(w, r, user, user)
}

// handleUserTransactions lists another user's transactions in the box.
func (s *Server) handleUserTransactions(w http.ResponseWriter, r *http.Request, user core.User) {
	other, err := s.store.GetUserByUsername(r.Context(), r.PathValue("user"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.renderTransactions(w, r, user, other)
}

func (s *Server) renderTransactions(w http.ResponseWriter, r *http.Request, current, subject core.User) {
	list, err := s.ledger.ListUserTransactions(r.Context(), r.PathValue("name"), subject, searchParam(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, pageTransactions, pageData{
		Title:   list.Box.Name + " - " + subject.DisplayName(),
		User:    current,
		Content: list,
	})
}

// handleUsers renders the balance of every active user in every cash box.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, user core.User) {
	matrix, err := s.ledger.Matrix(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, pageUsers, pageData{Title: "Users", User: user, Content: matrix})
}

// handleDocument serves a stored invoice document.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request, _ core.User) {
	name := r.PathValue("file")
	f, err := s.docs.Open(name)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `inline; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// handleError maps domain errors to responses: unknown entities are 404,
// inactive users 403, validation failures 422, anything else 500.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		UnprocessableEntityError(verr.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("Not found").Write(w)
	case errors.Is(err, core.ErrInactiveUser):
		ErrorResponse(http.StatusForbidden, "This account is inactive.").Write(w)
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	applog.FromContext(r.Context()).Error("Request failed",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path,
		applog.FieldError, err)
	InternalServerError("Internal server error").Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
