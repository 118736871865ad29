package http

import (
	"errors"
	"log/slog"
	"net/http"

	"cashboxes/internal/core"
	applog "cashboxes/internal/log"
	"cashboxes/internal/services"
)

// submitForm is the submission page model. Values echo the user's input
// after a failed validation.
type submitForm struct {
	Box    core.CashBox
	Values map[string]string
	Errors map[string]string
}

func (s *Server) handleSubmitForm(w http.ResponseWriter, r *http.Request, user core.User) {
	box, err := s.store.GetCashBoxByName(r.Context(), r.PathValue("name"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, pageSubmit, pageData{
		Title: "New invoice",
		User:  user,
		Content: submitForm{
			Box:    box,
			Values: map[string]string{services.FieldDate: s.invoices.Today().String()},
		},
	})
}

// handleSubmitInvoice stores a multipart invoice submission and redirects to
// the box's invoice list. Field errors re-render the form with 422.
func (s *Server) handleSubmitInvoice(w http.ResponseWriter, r *http.Request, user core.User) {
	name := r.PathValue("name")
	logger := applog.FromContext(r.Context())

	in, cleanup, err := ParseInvoiceForm(w, r, s.maxUploadBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "The upload is too large.").Write(w)
			return
		}
		logger.Warn("Invalid submission form", applog.FieldError, err)
		BadRequestError("Invalid request format").Write(w)
		return
	}
	defer cleanup()

	in.CashBox = name
	in.User = user

	tx, err := s.invoices.Submit(r.Context(), in)
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		box, boxErr := s.store.GetCashBoxByName(r.Context(), name)
		if boxErr != nil {
			s.handleError(w, r, boxErr)
			return
		}
		resp := NewHTMXResponse()
		if isHTMX(r) {
			resp.TriggerErrorNotification("Please correct the highlighted fields.")
		}
		s.renderWith(w, r, resp, http.StatusUnprocessableEntity, pageSubmit, pageData{
			Title: "New invoice",
			User:  user,
			Content: submitForm{
				Box: box,
				Values: map[string]string{
					services.FieldDescription: in.Description,
					services.FieldDate:        in.Date,
					services.FieldAmount:      in.Amount,
				},
				Errors: verr.Fields,
			},
		})
		return
	case err != nil:
		s.handleError(w, r, err)
		return
	}

	logger.LogFields(r.Context(), slog.LevelInfo, "Invoice stored", applog.NewFields().
		WithOperation(applog.OpSubmit).
		WithUser(user.Username).
		WithInvoice(tx.ID, name, tx.Amount.Cents()))

	target := "/box/" + pathEscape(name) + "/"
	if isHTMX(r) {
		NewHTMXResponse().
			Header("HX-Redirect", target).
			TriggerInvoiceSubmitted(tx.ID, name).
			TriggerBalanceRefresh(name).
			TriggerFormReset().
			TriggerSuccessNotification("Invoice stored").
			Write(w)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
