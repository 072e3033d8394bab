package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/klinikflow/klinikflow/services/booking-service/internal/apierr"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/booking"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/timeparse"
)

// PublicHandler exposes the booking widget API: availability lookup, booking
// commit, staff and service directories, and portal client intake. All
// endpoints are unauthenticated; the gateway fronts them with CORS and rate
// limiting.
type PublicHandler struct {
	engine *booking.Engine
	logger *slog.Logger
}

func NewPublicHandler(engine *booking.Engine, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{engine: engine, logger: logger}
}

// publicParams is the union of the read-endpoint parameters. GET requests
// carry them as query parameters, POST requests as a JSON body; the widget
// has used both over time.
type publicParams struct {
	ClinicSlug string `json:"clinicSlug"`
	StaffUID   string `json:"staffUid"`
	DateISO    string `json:"dateIso"`
	ServiceID  string `json:"serviceId"`
}

type bookRequest struct {
	ClinicSlug      string `json:"clinicSlug"`
	StaffUID        string `json:"staffUid"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	ServiceID       string `json:"serviceId"`
	StartISO        string `json:"startIso"`
	EndISO          string `json:"endIso"`
	Notes           string `json:"notes"`
	PrivacyAccepted bool   `json:"privacyAccepted"`
	MarketingOptIn  bool   `json:"marketingOptIn"`
}

type clientIntakeRequest struct {
	ClinicSlug      string `json:"clinicSlug"`
	ServiceID       string `json:"serviceId"`
	StartISO        string `json:"startIso"`
	EndISO          string `json:"endIso"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Notes           string `json:"notes"`
	PrivacyAccepted bool   `json:"privacyAccepted"`
	MarketingOptIn  bool   `json:"marketingOptIn"`
}

type slotItem struct {
	StartISO  string `json:"startIso"`
	EndISO    string `json:"endIso"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type availabilityResponse struct {
	Slots          []slotItem `json:"slots"`
	Timezone       string     `json:"timezone"`
	SlotMinutes    int        `json:"slotMinutes"`
	ServiceMinutes int        `json:"serviceMinutes"`
}

type staffItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

type staffResponse struct {
	ClinicSlug string      `json:"clinicSlug"`
	ClinicName string      `json:"clinicName"`
	Staff      []staffItem `json:"staff"`
}

type serviceItem struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	DurationMinutes int      `json:"durationMinutes"`
	Price           *float64 `json:"price,omitempty"`
	PriceInclVAT    *float64 `json:"priceInclVat,omitempty"`
	Currency        string   `json:"currency"`
	IncludeVAT      bool     `json:"includeVat"`
	Color           string   `json:"color,omitempty"`
}

type servicesResponse struct {
	Services []serviceItem `json:"services"`
}

func (h *PublicHandler) Availability(w http.ResponseWriter, r *http.Request) {
	params, done := h.readParams(w, r)
	if done {
		return
	}

	result, err := h.engine.Availability(r.Context(), booking.AvailabilityRequest{
		ClinicSlug: params.ClinicSlug,
		StaffUID:   params.StaffUID,
		DateISO:    params.DateISO,
		ServiceID:  params.ServiceID,
	})
	if err != nil {
		h.writeError(w, r, err, false)
		return
	}

	slots := make([]slotItem, 0, len(result.Slots))
	for _, slot := range result.Slots {
		slots = append(slots, slotItem{
			StartISO:  timeparse.UTCISO(slot.Start),
			EndISO:    timeparse.UTCISO(slot.End),
			StartTime: timeparse.TimeHHMM(slot.Start),
			EndTime:   timeparse.TimeHHMM(slot.End),
		})
	}
	h.writeJSON(w, http.StatusOK, availabilityResponse{
		Slots:          slots,
		Timezone:       result.Timezone,
		SlotMinutes:    result.SlotMinutes,
		ServiceMinutes: result.ServiceMinutes,
	})
}

func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		h.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "Method not allowed."})
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Invalid JSON body."})
		return
	}

	result, err := h.engine.Book(r.Context(), booking.Request{
		ClinicSlug:      req.ClinicSlug,
		StaffUID:        req.StaffUID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		ServiceID:       req.ServiceID,
		StartISO:        req.StartISO,
		EndISO:          req.EndISO,
		Notes:           req.Notes,
		PrivacyAccepted: req.PrivacyAccepted,
		MarketingOptIn:  req.MarketingOptIn,
	})
	if err != nil {
		h.writeError(w, r, err, true)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"appointmentId": result.AppointmentID,
		"clientId":      result.ClientID,
	})
}

func (h *PublicHandler) Staff(w http.ResponseWriter, r *http.Request) {
	params, done := h.readParams(w, r)
	if done {
		return
	}

	dir, err := h.engine.StaffForClinic(r.Context(), params.ClinicSlug)
	if err != nil {
		h.writeError(w, r, err, false)
		return
	}

	staff := make([]staffItem, 0, len(dir.Staff))
	for _, member := range dir.Staff {
		staff = append(staff, staffItem{
			ID:   member.ID,
			Name: member.DisplayName(),
			Role: member.Role,
		})
	}
	h.writeJSON(w, http.StatusOK, staffResponse{
		ClinicSlug: dir.ClinicSlug,
		ClinicName: dir.ClinicName,
		Staff:      staff,
	})
}

func (h *PublicHandler) Services(w http.ResponseWriter, r *http.Request) {
	params, done := h.readParams(w, r)
	if done {
		return
	}

	items, err := h.engine.ServicesForClinic(r.Context(), params.ClinicSlug)
	if err != nil {
		h.writeError(w, r, err, false)
		return
	}

	services := make([]serviceItem, 0, len(items))
	for _, item := range items {
		services = append(services, serviceItem{
			ID:              item.ID,
			Name:            item.Name,
			Description:     item.Description,
			DurationMinutes: item.DurationMinutes,
			Price:           item.Price,
			PriceInclVAT:    item.PriceInclVAT,
			Currency:        item.Currency,
			IncludeVAT:      item.IncludeVAT,
			Color:           item.Color,
		})
	}
	h.writeJSON(w, http.StatusOK, servicesResponse{Services: services})
}

func (h *PublicHandler) Clients(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		h.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "Method not allowed."})
		return
	}

	var req clientIntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Invalid JSON body."})
		return
	}

	result, err := h.engine.ClientIntake(r.Context(), booking.ClientIntakeRequest{
		ClinicSlug:      req.ClinicSlug,
		ServiceID:       req.ServiceID,
		StartISO:        req.StartISO,
		EndISO:          req.EndISO,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		Notes:           req.Notes,
		PrivacyAccepted: req.PrivacyAccepted,
		MarketingOptIn:  req.MarketingOptIn,
	})
	if err != nil {
		h.writeError(w, r, err, true)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"clientId":  result.ClientID,
		"bookingId": result.BookingID,
	})
}

// readParams handles OPTIONS and method dispatch for the read endpoints and
// extracts their parameters. done is true when a response has been written.
func (h *PublicHandler) readParams(w http.ResponseWriter, r *http.Request) (publicParams, bool) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return publicParams{}, true
	case http.MethodGet:
		q := r.URL.Query()
		return publicParams{
			ClinicSlug: strings.TrimSpace(q.Get("clinicSlug")),
			StaffUID:   strings.TrimSpace(q.Get("staffUid")),
			DateISO:    strings.TrimSpace(q.Get("dateIso")),
			ServiceID:  strings.TrimSpace(q.Get("serviceId")),
		}, false
	case http.MethodPost:
		var params publicParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body."})
			return publicParams{}, true
		}
		return params, false
	default:
		h.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed."})
		return publicParams{}, true
	}
}

// writeError maps a domain failure onto the response contract. Booking-style
// endpoints carry an ok flag alongside the error message; read endpoints do
// not. Internal details never reach the body.
func (h *PublicHandler) writeError(w http.ResponseWriter, r *http.Request, err error, withOK bool) {
	apiErr := apierr.From(err)
	status := apiErr.HTTPStatus()

	message := apiErr.Message
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "err", err)
		message = "Internal error."
	} else if status == http.StatusBadGateway {
		h.logger.Error("upstream failure", "path", r.URL.Path, "err", err)
	}

	body := map[string]any{"error": message}
	if withOK {
		body["ok"] = false
	}
	if len(apiErr.Missing) > 0 {
		body["missing"] = apiErr.Missing
	}
	h.writeJSON(w, status, body)
}

func (h *PublicHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encode failed", "err", err)
	}
}
