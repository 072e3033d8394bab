package booking

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/klinikflow/klinikflow/services/booking-service/internal/apierr"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/model"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/outbox"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/workinghours"
)

type fakeStore struct {
	clinics  map[string]model.Clinic
	owners   map[string]model.OwnerProfile
	staff    map[string]model.StaffMember // key ownerUID/staffID
	services map[string]model.Service     // key ownerUID/serviceID
	appts    []model.Appointment
	clients  []model.Client
	requests []model.BookingRequest
	events   []outbox.Event
	updates  []map[string]string
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clinics:  map[string]model.Clinic{},
		owners:   map[string]model.OwnerProfile{},
		staff:    map[string]model.StaffMember{},
		services: map[string]model.Service{},
	}
}

func (f *fakeStore) ClinicBySlug(_ context.Context, slug string) (model.Clinic, bool, error) {
	c, ok := f.clinics[slug]
	return c, ok, nil
}

func (f *fakeStore) OwnerProfile(_ context.Context, uid string) (model.OwnerProfile, bool, error) {
	o, ok := f.owners[uid]
	return o, ok, nil
}

func (f *fakeStore) StaffMember(_ context.Context, ownerUID, staffID string) (model.StaffMember, bool, error) {
	s, ok := f.staff[ownerUID+"/"+staffID]
	return s, ok, nil
}

func (f *fakeStore) ListStaff(_ context.Context, ownerUID string) ([]model.StaffMember, error) {
	var out []model.StaffMember
	for key, s := range f.staff {
		if strings.HasPrefix(key, ownerUID+"/") {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ServiceByID(_ context.Context, ownerUID, serviceID string) (model.Service, bool, error) {
	s, ok := f.services[ownerUID+"/"+serviceID]
	return s, ok, nil
}

func (f *fakeStore) ListServices(_ context.Context, ownerUID string) ([]model.Service, error) {
	var out []model.Service
	for key, s := range f.services {
		if strings.HasPrefix(key, ownerUID+"/") {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) AppointmentsStartingWithin(_ context.Context, ownerUID, fromISO, toISO string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.OwnerUID == ownerUID && a.StartISO >= fromISO && a.StartISO < toISO {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ClientByPhoneNorm(_ context.Context, ownerUID, phoneNorm string) (model.Client, bool, error) {
	for _, c := range f.clients {
		if c.OwnerUID == ownerUID && c.PhoneNorm == phoneNorm {
			return c, true, nil
		}
	}
	return model.Client{}, false, nil
}

func (f *fakeStore) ClientByEmailLower(_ context.Context, ownerUID, emailLower string) (model.Client, bool, error) {
	for _, c := range f.clients {
		if c.OwnerUID == ownerUID && c.EmailLower == emailLower {
			return c, true, nil
		}
	}
	return model.Client{}, false, nil
}

func (f *fakeStore) UpdateClient(_ context.Context, _, _ string, updates map[string]string) error {
	f.updates = append(f.updates, updates)
	return nil
}

func (f *fakeStore) InsertClient(_ context.Context, c model.Client) (string, error) {
	f.nextID++
	c.ID = "client-" + strconv.Itoa(f.nextID)
	f.clients = append(f.clients, c)
	return c.ID, nil
}

func (f *fakeStore) InsertAppointment(_ context.Context, a model.Appointment) (string, error) {
	f.nextID++
	a.ID = "appt-" + strconv.Itoa(f.nextID)
	f.appts = append(f.appts, a)
	return a.ID, nil
}

func (f *fakeStore) InsertBookingRequest(_ context.Context, b model.BookingRequest) (string, error) {
	f.nextID++
	b.ID = "req-" + strconv.Itoa(f.nextID)
	f.requests = append(f.requests, b)
	return b.ID, nil
}

func (f *fakeStore) InsertEvent(_ context.Context, evt outbox.Event) error {
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeStore) WithTx(_ context.Context, fn func(Store) error) error {
	return fn(f)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func storeWithClinic() *fakeStore {
	f := newFakeStore()
	f.clinics["aarhus-fys"] = model.Clinic{
		Slug:        "aarhus-fys",
		ClinicName:  "Aarhus Fysioterapi",
		OwnerUID:    "owner-1",
		IsActive:    true,
		Timezone:    "Europe/Copenhagen",
		SlotMinutes: 15,
	}
	f.owners["owner-1"] = model.OwnerProfile{UID: "owner-1", DisplayName: "Mette Hansen", Email: "mette@example.com"}
	f.owners["staff-1"] = model.OwnerProfile{UID: "staff-1", DisplayName: "Lars Jensen", Email: "lars@example.com"}
	f.staff["owner-1/staff-1"] = model.StaffMember{ID: "staff-1", Name: "Lars Jensen"}
	f.services["owner-1/svc-1"] = model.Service{ID: "svc-1", Name: "Behandling", DurationRaw: "45 min"}
	return f
}

func validRequest() Request {
	return Request{
		ClinicSlug:      "aarhus-fys",
		StaffUID:        "staff-1",
		FirstName:       "Jens",
		LastName:        "Nielsen",
		Email:           "jens@example.com",
		Phone:           "12 34 56 78",
		ServiceID:       "svc-1",
		StartISO:        "2026-03-10T09:00:00Z",
		EndISO:          "2026-03-10T09:45:00Z",
		PrivacyAccepted: true,
	}
}

func TestBookValidationEnumeratesMissingFields(t *testing.T) {
	f := storeWithClinic()
	engine := NewEngine(f, testLogger(), false)

	req := validRequest()
	req.Email = ""
	req.PrivacyAccepted = false

	_, err := engine.Book(context.Background(), req)
	apiErr := apierr.From(err)
	if apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got kind %d: %v", apiErr.Kind, err)
	}
	want := []string{"email", "privacyAccepted"}
	if !reflect.DeepEqual(apiErr.Missing, want) {
		t.Fatalf("expected missing %v, got %v", want, apiErr.Missing)
	}
	if len(f.clients) != 0 || len(f.appts) != 0 {
		t.Fatal("rejected booking must not write")
	}
}

func TestBookMissingFieldOrderMatchesCheckOrder(t *testing.T) {
	engine := NewEngine(newFakeStore(), testLogger(), false)
	_, err := engine.Book(context.Background(), Request{})
	apiErr := apierr.From(err)
	want := []string{"clinicSlug", "staffUid", "firstName", "lastName", "email", "serviceId", "startIso", "endIso", "phone", "privacyAccepted"}
	if !reflect.DeepEqual(apiErr.Missing, want) {
		t.Fatalf("expected %v, got %v", want, apiErr.Missing)
	}
}

func TestBookInvalidInstants(t *testing.T) {
	f := storeWithClinic()
	engine := NewEngine(f, testLogger(), false)

	req := validRequest()
	req.StartISO = "not-a-date"
	if _, err := engine.Book(context.Background(), req); apierr.From(err).Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	req = validRequest()
	req.EndISO = req.StartISO
	if _, err := engine.Book(context.Background(), req); apierr.From(err).Kind != apierr.KindValidation {
		t.Fatalf("expected validation error for empty range, got %v", err)
	}
}

func TestBookClinicResolution(t *testing.T) {
	f := storeWithClinic()
	engine := NewEngine(f, testLogger(), false)

	req := validRequest()
	req.ClinicSlug = "unknown"
	if _, err := engine.Book(context.Background(), req); apierr.From(err).Kind != apierr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	inactive := f.clinics["aarhus-fys"]
	inactive.IsActive = false
	f.clinics["aarhus-fys"] = inactive
	if _, err := engine.Book(context.Background(), validRequest()); apierr.From(err).Kind != apierr.KindForbidden {
		t.Fatalf("expected forbidden for inactive clinic, got %v", err)
	}
}

func TestBookConflictExactInterval(t *testing.T) {
	f := storeWithClinic()
	f.appts = append(f.appts, model.Appointment{
		OwnerUID: "owner-1",
		StaffUID: "staff-1",
		StartISO: "2026-03-10T09:00:00Z",
		EndISO:   "2026-03-10T09:45:00Z",
		Status:   "requested",
	})
	engine := NewEngine(f, testLogger(), false)

	_, err := engine.Book(context.Background(), validRequest())
	apiErr := apierr.From(err)
	if apiErr.Kind != apierr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if apiErr.Message != "Slot unavailable." {
		t.Fatalf("unexpected conflict message: %q", apiErr.Message)
	}
	if len(f.clients) != 0 || len(f.appts) != 1 || len(f.events) != 0 {
		t.Fatal("conflicting booking must not write")
	}
}

func TestBookAdjacentIntervalDoesNotConflict(t *testing.T) {
	f := storeWithClinic()
	f.appts = append(f.appts, model.Appointment{
		OwnerUID: "owner-1",
		StaffUID: "staff-1",
		StartISO: "2026-03-10T08:15:00Z",
		EndISO:   "2026-03-10T09:00:00Z",
	})
	engine := NewEngine(f, testLogger(), false)

	if _, err := engine.Book(context.Background(), validRequest()); err != nil {
		t.Fatalf("touching intervals must not conflict: %v", err)
	}
}

func TestBookOtherStaffDoesNotConflict(t *testing.T) {
	f := storeWithClinic()
	f.appts = append(f.appts, model.Appointment{
		OwnerUID: "owner-1",
		StaffUID: "staff-2",
		StartISO: "2026-03-10T09:00:00Z",
		EndISO:   "2026-03-10T09:45:00Z",
	})
	engine := NewEngine(f, testLogger(), false)

	if _, err := engine.Book(context.Background(), validRequest()); err != nil {
		t.Fatalf("other staff's appointment must not block: %v", err)
	}
}

func TestBookCommitWritesAppointmentAndClient(t *testing.T) {
	f := storeWithClinic()
	engine := NewEngine(f, testLogger(), false)

	result, err := engine.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if result.AppointmentID == "" || result.ClientID == "" {
		t.Fatalf("expected ids in result, got %+v", result)
	}

	if len(f.clients) != 1 {
		t.Fatalf("expected 1 client, got %d", len(f.clients))
	}
	client := f.clients[0]
	if client.OwnerUID != "staff-1" {
		t.Fatalf("client must live under the calendar owner, got %q", client.OwnerUID)
	}
	if client.PhoneNorm != "4512345678" {
		t.Fatalf("unexpected phone norm: %q", client.PhoneNorm)
	}
	if client.Status != "Aktiv" || client.Source != "publicBooking" {
		t.Fatalf("unexpected provenance: status=%q source=%q", client.Status, client.Source)
	}

	if len(f.appts) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(f.appts))
	}
	appt := f.appts[0]
	if appt.OwnerUID != "owner-1" {
		t.Fatalf("appointment must live under the clinic owner, got %q", appt.OwnerUID)
	}
	if appt.Status != "requested" {
		t.Fatalf("unexpected status: %q", appt.Status)
	}
	if appt.StartISO != "2026-03-10T09:00:00Z" || appt.EndISO != "2026-03-10T09:45:00Z" {
		t.Fatalf("unexpected machine fields: %q / %q", appt.StartISO, appt.EndISO)
	}
	// 09:00 UTC is 10:00 in Copenhagen (CET, winter).
	if appt.StartDate != "10-03-2026" || appt.StartTime != "10:00" {
		t.Fatalf("unexpected display fields: %q %q", appt.StartDate, appt.StartTime)
	}
	if appt.CalendarOwner != "Lars Jensen" {
		t.Fatalf("unexpected calendar owner: %q", appt.CalendarOwner)
	}

	if len(f.events) != 1 || f.events[0].EventType != outbox.TopicAppointmentRequested {
		t.Fatalf("expected one appointment-requested event, got %+v", f.events)
	}
}

func TestBookMergesExistingClientFillBlankOnly(t *testing.T) {
	f := storeWithClinic()
	f.clients = append(f.clients, model.Client{
		ID:        "client-existing",
		OwnerUID:  "staff-1",
		FirstName: "Jens",
		Email:     "",
		FullName:  "Jens Gammel",
		PhoneNorm: "4512345678",
	})
	engine := NewEngine(f, testLogger(), false)

	result, err := engine.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if result.ClientID != "client-existing" {
		t.Fatalf("expected existing client to be reused, got %q", result.ClientID)
	}
	if len(f.updates) != 1 {
		t.Fatalf("expected 1 merge update, got %d", len(f.updates))
	}
	updates := f.updates[0]
	if updates["email"] != "jens@example.com" {
		t.Fatalf("blank email must be filled, got %+v", updates)
	}
	if _, touched := updates["full_name"]; touched {
		t.Fatalf("populated full_name must not be overwritten: %+v", updates)
	}
	if _, touched := updates["first_name"]; touched {
		t.Fatalf("populated first_name must not be overwritten: %+v", updates)
	}
}

func TestBookAtomicRunsInsideTx(t *testing.T) {
	f := storeWithClinic()
	engine := NewEngine(f, testLogger(), true)

	if _, err := engine.Book(context.Background(), validRequest()); err != nil {
		t.Fatalf("atomic booking failed: %v", err)
	}
	if len(f.appts) != 1 || len(f.clients) != 1 {
		t.Fatal("atomic commit must still write client and appointment")
	}
}

func TestAvailabilitySlots(t *testing.T) {
	f := storeWithClinic()
	clinic := f.clinics["aarhus-fys"]
	clinic.Timezone = "UTC"
	clinic.WorkingHours = workinghours.WorkingHours{
		"tue": {{Start: "09:00", End: "10:00"}},
	}
	f.clinics["aarhus-fys"] = clinic
	f.services["owner-1/svc-1"] = model.Service{ID: "svc-1", Name: "Behandling", DurationRaw: "30 min"}
	engine := NewEngine(f, testLogger(), false)

	// 2026-03-10 is a Tuesday.
	result, err := engine.Availability(context.Background(), AvailabilityRequest{
		ClinicSlug: "aarhus-fys",
		StaffUID:   "staff-1",
		DateISO:    "2026-03-10",
		ServiceID:  "svc-1",
	})
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if result.SlotMinutes != 15 || result.ServiceMinutes != 30 {
		t.Fatalf("unexpected minutes: %+v", result)
	}
	if result.Timezone != "UTC" {
		t.Fatalf("unexpected timezone: %q", result.Timezone)
	}
	if len(result.Slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(result.Slots))
	}

	// An existing 09:15-09:45 appointment for the staff member blocks all
	// 30-minute candidates.
	f.appts = append(f.appts, model.Appointment{
		OwnerUID: "owner-1",
		StaffUID: "staff-1",
		StartISO: "2026-03-10T09:15:00Z",
		EndISO:   "2026-03-10T09:45:00Z",
	})
	result, err = engine.Availability(context.Background(), AvailabilityRequest{
		ClinicSlug: "aarhus-fys",
		StaffUID:   "staff-1",
		DateISO:    "2026-03-10",
		ServiceID:  "svc-1",
	})
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if len(result.Slots) != 0 {
		t.Fatalf("expected no free slots, got %d", len(result.Slots))
	}
}

func TestAvailabilityMissingFields(t *testing.T) {
	engine := NewEngine(newFakeStore(), testLogger(), false)
	_, err := engine.Availability(context.Background(), AvailabilityRequest{ClinicSlug: "x"})
	apiErr := apierr.From(err)
	want := []string{"staffUid", "dateIso", "serviceId"}
	if !reflect.DeepEqual(apiErr.Missing, want) {
		t.Fatalf("expected %v, got %v", want, apiErr.Missing)
	}
}

func TestAvailabilityUnknownService(t *testing.T) {
	f := storeWithClinic()
	engine := NewEngine(f, testLogger(), false)
	_, err := engine.Availability(context.Background(), AvailabilityRequest{
		ClinicSlug: "aarhus-fys",
		StaffUID:   "staff-1",
		DateISO:    "2026-03-10",
		ServiceID:  "nope",
	})
	if apierr.From(err).Kind != apierr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAvailabilityAcceptsInstantDate(t *testing.T) {
	f := storeWithClinic()
	clinic := f.clinics["aarhus-fys"]
	clinic.Timezone = "UTC"
	clinic.WorkingHours = workinghours.WorkingHours{"tue": {{Start: "09:00", End: "09:30"}}}
	f.clinics["aarhus-fys"] = clinic
	f.services["owner-1/svc-1"] = model.Service{ID: "svc-1", Name: "Behandling", DurationRaw: "30"}
	engine := NewEngine(f, testLogger(), false)

	result, err := engine.Availability(context.Background(), AvailabilityRequest{
		ClinicSlug: "aarhus-fys",
		StaffUID:   "staff-1",
		DateISO:    "2026-03-10T14:30:00Z",
		ServiceID:  "svc-1",
	})
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if len(result.Slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(result.Slots))
	}
}

func TestClientIntakeUpsertByEmail(t *testing.T) {
	f := storeWithClinic()
	engine := NewEngine(f, testLogger(), false)

	req := ClientIntakeRequest{
		ClinicSlug:      "aarhus-fys",
		StartISO:        "2026-03-10T09:00:00Z",
		EndISO:          "2026-03-10T09:45:00Z",
		FirstName:       "Jens",
		Email:           "Jens@Example.com",
		PrivacyAccepted: true,
	}
	result, err := engine.ClientIntake(context.Background(), req)
	if err != nil {
		t.Fatalf("intake failed: %v", err)
	}
	if result.ClientID == "" || result.BookingID == "" {
		t.Fatalf("expected ids, got %+v", result)
	}
	if len(f.requests) != 1 {
		t.Fatalf("expected booking request row, got %d", len(f.requests))
	}
	if f.clients[0].EmailLower != "jens@example.com" {
		t.Fatalf("email not normalized: %q", f.clients[0].EmailLower)
	}

	// Second intake with the same email reuses the client.
	result2, err := engine.ClientIntake(context.Background(), req)
	if err != nil {
		t.Fatalf("second intake failed: %v", err)
	}
	if result2.ClientID != result.ClientID {
		t.Fatalf("expected same client, got %q vs %q", result2.ClientID, result.ClientID)
	}
	if len(f.clients) != 1 {
		t.Fatalf("expected no duplicate client, got %d", len(f.clients))
	}
}

func TestClientIntakeValidation(t *testing.T) {
	engine := NewEngine(storeWithClinic(), testLogger(), false)

	cases := []ClientIntakeRequest{
		{},
		{ClinicSlug: "aarhus-fys"},
		{ClinicSlug: "aarhus-fys", StartISO: "2026-03-10T09:00:00Z", EndISO: "2026-03-10T10:00:00Z"},
		{ClinicSlug: "aarhus-fys", StartISO: "2026-03-10T09:00:00Z", EndISO: "2026-03-10T10:00:00Z", FirstName: "Jens", Email: "jens@example.com"},
	}
	for i, req := range cases {
		if _, err := engine.ClientIntake(context.Background(), req); apierr.From(err).Kind != apierr.KindValidation {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestStaffDirectoryOwnerFallback(t *testing.T) {
	f := storeWithClinic()
	delete(f.staff, "owner-1/staff-1")
	engine := NewEngine(f, testLogger(), false)

	dir, err := engine.StaffForClinic(context.Background(), "aarhus-fys")
	if err != nil {
		t.Fatalf("staff lookup failed: %v", err)
	}
	if len(dir.Staff) != 1 {
		t.Fatalf("expected owner fallback entry, got %d", len(dir.Staff))
	}
	if dir.Staff[0].ID != "owner-1" || dir.Staff[0].Role != "owner" || dir.Staff[0].Name != "Mette Hansen" {
		t.Fatalf("unexpected fallback entry: %+v", dir.Staff[0])
	}
}

func TestServicesForClinic(t *testing.T) {
	f := storeWithClinic()
	f.services["owner-1/svc-2"] = model.Service{ID: "svc-2", Name: "", DurationRaw: "30"} // unnamed, skipped
	engine := NewEngine(f, testLogger(), false)

	items, err := engine.ServicesForClinic(context.Background(), "aarhus-fys")
	if err != nil {
		t.Fatalf("services lookup failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 named service, got %d", len(items))
	}
	if items[0].DurationMinutes != 45 {
		t.Fatalf("expected 45 minutes from '45 min', got %d", items[0].DurationMinutes)
	}
	if items[0].Currency != "DKK" {
		t.Fatalf("expected DKK default, got %q", items[0].Currency)
	}
}

type overlapGuardStore struct {
	*fakeStore
}

func (s *overlapGuardStore) InsertAppointment(context.Context, model.Appointment) (string, error) {
	return "", &pgconn.PgError{Code: "23P01"}
}

type serializationFailStore struct {
	*fakeStore
}

func (s *serializationFailStore) WithTx(_ context.Context, fn func(Store) error) error {
	if err := fn(s.fakeStore); err != nil {
		return err
	}
	return &pgconn.PgError{Code: "40001"}
}

type duplicateClientStore struct {
	*fakeStore
	raced bool
}

func (s *duplicateClientStore) InsertClient(ctx context.Context, c model.Client) (string, error) {
	if !s.raced {
		s.raced = true
		winner := c
		winner.ID = "client-winner"
		s.clients = append(s.clients, winner)
		return "", &pgconn.PgError{Code: "23505"}
	}
	return s.fakeStore.InsertClient(ctx, c)
}

func TestBookStoresOffsetInstantsAsCanonicalUTC(t *testing.T) {
	f := storeWithClinic()
	engine := NewEngine(f, testLogger(), false)

	first := validRequest()
	first.StartISO = "2026-03-11T00:30:00+02:00"
	first.EndISO = "2026-03-11T01:15:00+02:00"
	if _, err := engine.Book(context.Background(), first); err != nil {
		t.Fatalf("Book: %v", err)
	}

	appt := f.appts[0]
	if appt.StartISO != "2026-03-10T22:30:00Z" || appt.EndISO != "2026-03-10T23:15:00Z" {
		t.Fatalf("stored instants not canonical UTC: %q / %q", appt.StartISO, appt.EndISO)
	}
	var payload map[string]any
	if err := json.Unmarshal(f.events[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal event payload: %v", err)
	}
	if payload["startIso"] != "2026-03-10T22:30:00Z" {
		t.Fatalf("event payload startIso %v, want canonical UTC", payload["startIso"])
	}

	// The same interval written in Z form must now hit the stored row in
	// the day-window prefetch.
	second := validRequest()
	second.Phone = "87 65 43 21"
	second.StartISO = "2026-03-10T22:30:00Z"
	second.EndISO = "2026-03-10T23:15:00Z"
	_, err := engine.Book(context.Background(), second)
	if apierr.From(err).Kind != apierr.KindConflict {
		t.Fatalf("expected conflict against canonicalized booking, got %v", err)
	}
	if len(f.appts) != 1 {
		t.Fatalf("conflicting booking must not write, have %d appointments", len(f.appts))
	}
}

func TestBookExclusionViolationMapsToConflict(t *testing.T) {
	f := storeWithClinic()
	engine := NewEngine(&overlapGuardStore{fakeStore: f}, testLogger(), false)

	_, err := engine.Book(context.Background(), validRequest())
	apiErr := apierr.From(err)
	if apiErr.Kind != apierr.KindConflict || apiErr.Message != "Slot unavailable." {
		t.Fatalf("expected slot conflict, got %v", err)
	}
	if len(f.events) != 0 {
		t.Fatal("failed insert must not emit events")
	}
}

func TestBookAtomicSerializationFailureMapsToConflict(t *testing.T) {
	f := storeWithClinic()
	engine := NewEngine(&serializationFailStore{fakeStore: f}, testLogger(), true)

	_, err := engine.Book(context.Background(), validRequest())
	apiErr := apierr.From(err)
	if apiErr.Kind != apierr.KindConflict || apiErr.Message != "Slot unavailable." {
		t.Fatalf("expected slot conflict on serialization failure, got %v", err)
	}
}

func TestBookClientInsertRaceAdoptsWinningRecord(t *testing.T) {
	f := storeWithClinic()
	engine := NewEngine(&duplicateClientStore{fakeStore: f}, testLogger(), false)

	result, err := engine.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if result.ClientID != "client-winner" {
		t.Fatalf("expected the concurrently created client to be adopted, got %q", result.ClientID)
	}
	if f.appts[0].ClientID != "client-winner" {
		t.Fatalf("appointment bound to %q, want the adopted client", f.appts[0].ClientID)
	}
}

func TestClientIntakeInsertRaceAdoptsWinningRecord(t *testing.T) {
	f := storeWithClinic()
	engine := NewEngine(&duplicateClientStore{fakeStore: f}, testLogger(), false)

	result, err := engine.ClientIntake(context.Background(), ClientIntakeRequest{
		ClinicSlug:      "aarhus-fys",
		StartISO:        "2026-03-10T09:00:00Z",
		EndISO:          "2026-03-10T10:00:00Z",
		FirstName:       "Jens",
		Email:           "jens@example.com",
		PrivacyAccepted: true,
	})
	if err != nil {
		t.Fatalf("ClientIntake: %v", err)
	}
	if result.ClientID != "client-winner" {
		t.Fatalf("expected the concurrently created client to be adopted, got %q", result.ClientID)
	}
}
