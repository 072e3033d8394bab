package model

import (
	"time"

	"github.com/klinikflow/klinikflow/services/booking-service/internal/workinghours"
)

// Clinic is a row in public_clinics: the public, slug-addressed view of a
// tenant's booking configuration. Read-only to this service.
type Clinic struct {
	Slug         string
	ClinicName   string
	OwnerUID     string
	IsActive     bool
	Timezone     string
	SlotMinutes  int
	WorkingHours workinghours.WorkingHours
}

// OwnerProfile carries the owner-account fields the booking flow needs:
// contact details for client provenance and the owner-level working hours
// fallback.
type OwnerProfile struct {
	UID          string
	DisplayName  string
	Email        string
	WorkingHours workinghours.WorkingHours
}

type StaffMember struct {
	ID            string
	Name          string
	FirstName     string
	LastName      string
	Role          string
	AvatarText    string
	CalendarColor string
	WorkingHours  workinghours.WorkingHours
}

// DisplayName prefers the explicit name field and falls back to
// "first last" the way staff records are entered from the portal.
func (s StaffMember) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	name := s.FirstName
	if s.LastName != "" {
		if name != "" {
			name += " "
		}
		name += s.LastName
	}
	return name
}

type Service struct {
	ID          string
	Name        string
	Description string
	// DurationRaw is stored as entered ("45 min", "1 time"); parsing happens
	// at read time with a 60-minute fallback.
	DurationRaw  string
	Price        *float64
	PriceInclVAT *float64
	Currency     string
	IncludeVAT   bool
	Color        string
}

type Client struct {
	ID              string
	OwnerUID        string
	FirstName       string
	LastName        string
	FullName        string
	Email           string
	EmailLower      string
	Phone           string
	PhoneCountry    string
	PhoneFull       string
	PhoneNorm       string
	OwnerEmail      string
	OwnerIdentifier string
	Status          string
	Source          string
	ClinicSlug      string
	CreatedAt       time.Time
	CreatedAtISO    string
	UpdatedAt       time.Time
}

// BookingRequest is a portal-intake booking awaiting manual confirmation;
// unlike an Appointment it never enters the conflict-checked calendar.
type BookingRequest struct {
	ID              string
	OwnerUID        string
	ClinicSlug      string
	ClinicName      string
	ServiceID       string
	StartISO        string
	EndISO          string
	Notes           string
	ClientID        string
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	PrivacyAccepted bool
	MarketingOptIn  bool
	CreatedAt       time.Time
}

// Appointment keeps both machine fields (StartISO/EndISO, UTC with a literal
// Z) and the local-formatted display fields downstream calendar UIs read.
type Appointment struct {
	ID              string
	OwnerUID        string
	ClinicSlug      string
	ClinicName      string
	StaffUID        string
	CalendarOwnerID string
	CalendarOwner   string
	Title           string
	ClientName      string
	ClientID        string
	ClientEmail     string
	ClientPhone     string
	ServiceID       string
	StartISO        string
	EndISO          string
	StartDate       string
	StartTime       string
	EndDate         string
	EndTime         string
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Notes           string
	PrivacyAccepted bool
	MarketingOptIn  bool
	Status          string
	CreatedAt       time.Time
}
