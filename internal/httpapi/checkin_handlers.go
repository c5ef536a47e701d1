package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"agendafit.app/internal/audit"
	"agendafit.app/internal/auth"
	"agendafit.app/internal/checkin"
	"agendafit.app/internal/credits"
	"agendafit.app/internal/service"
)

const (
	codeValidation          = "VALIDATION_ERROR"
	codeUnauthenticated     = "UNAUTHENTICATED"
	codeForbidden           = "FORBIDDEN"
	codeNotFound            = "NOT_FOUND"
	codeInsufficientCredits = "INSUFFICIENT_CREDITS"
	codeConflict            = "CONFLICT"
	codeInternal            = "INTERNAL"
	codeRateLimited         = "RATE_LIMITED"
)

type checkinRequest struct {
	Method string `json:"method" validate:"required,oneof=QRCODE MANUAL"`
}

type bookingView struct {
	ID              string         `json:"id"`
	StatusCanonical checkin.Status `json:"status_canonical"`
}

type creditsView struct {
	HoursCredited float64 `json:"hours_credited"`
	NewBalance    int64   `json:"new_balance"`
}

type checkinGranted struct {
	Success bool         `json:"success"`
	Booking bookingView  `json:"booking"`
	Credits *creditsView `json:"credits,omitempty"`
}

// checkinDenied deliberately has no booking field.
type checkinDenied struct {
	Success bool               `json:"success"`
	Code    checkin.DenialCode `json:"code"`
	Error   string             `json:"error"`
}

type historyResponse struct {
	Items []audit.Entry `json:"items"`
}

type creditsResponse struct {
	Account     credits.Account `json:"account"`
	HoursTaught float64         `json:"hours_taught"`
}

func (a *API) handleCheckin(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	bookingID := strings.TrimSpace(r.PathValue("id"))

	var req checkinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	req.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	if err := a.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, validationMessage(err))
		return
	}

	res, err := a.checkins.Checkin(r.Context(), bookingID, user, checkin.Method(req.Method))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if !res.Granted() {
		writeJSON(w, denialStatus(res.Decision.Outcome.Code), checkinDenied{
			Success: false,
			Code:    res.Decision.Outcome.Code,
			Error:   res.Decision.Outcome.Message,
		})
		return
	}

	body := checkinGranted{
		Success: true,
		Booking: bookingView{ID: res.Booking.ID, StatusCanonical: res.Booking.StatusCanonical},
	}
	if c := res.Consumption; c != nil {
		body.Credits = &creditsView{HoursCredited: c.HoursCredited, NewBalance: c.NewBalance}
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *API) handleCheckinHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	entries, err := a.checkins.History(r.Context(), strings.TrimSpace(r.PathValue("id")), user)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Items: entries})
}

func (a *API) handleCredits(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	acc, err := a.checkins.Credits(r.Context(), strings.TrimSpace(r.PathValue("ownerID")), user)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, creditsResponse{Account: acc, HoursTaught: acc.HoursTaught()})
}

func denialStatus(code checkin.DenialCode) int {
	switch code {
	case checkin.DenialUnauthorized:
		return http.StatusForbidden
	case checkin.DenialAlreadyCompleted:
		return http.StatusConflict
	case checkin.DenialInvalidStatus:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidMethod):
		writeError(w, r, http.StatusBadRequest, codeValidation, "method must be QRCODE or MANUAL")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, "Agendamento não encontrado")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, r, http.StatusForbidden, codeForbidden, "Acesso negado")
	case errors.Is(err, service.ErrInsufficientCredits):
		writeError(w, r, http.StatusConflict, codeInsufficientCredits, "Créditos insuficientes para realizar o check-in")
	case errors.Is(err, service.ErrConflict):
		writeError(w, r, http.StatusConflict, codeConflict, "Agendamento alterado por outra requisição, tente novamente")
	default:
		writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return field + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return field + " is invalid"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	payload := map[string]any{
		"success": false,
		"code":    code,
		"error":   msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, status, payload)
}

func (a *API) requireUser(w http.ResponseWriter, r *http.Request) (checkin.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", `Bearer realm="agendafit"`)
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "authentication required")
		return checkin.User{}, false
	}
	return user, true
}
