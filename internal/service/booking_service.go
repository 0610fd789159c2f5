package service

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/mailer"
	"github.com/movenorth/booking-backend/internal/model"
	"github.com/movenorth/booking-backend/internal/queue"
	"github.com/movenorth/booking-backend/internal/repository"
	"github.com/movenorth/booking-backend/internal/utils"
)

// WireDateFormat is the canonical date format accepted on booking
// creation, update and reschedule.
const WireDateFormat = "2006-01-02 15:04"

// CreateBookingCommand carries booking submission input. MovingDate is
// the raw wire string; parsing is part of validation.
type CreateBookingCommand struct {
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	PickupAddress  string
	DropoffAddress string
	MovingDate     string
	Service        string
	SubServices    []string
	Description    string
}

// UpdateBookingCommand updates contact and move details of an existing
// booking. Status and price are deliberately not part of it.
type UpdateBookingCommand struct {
	FirstName      string
	LastName       string
	PhoneNumber    string
	PickupAddress  string
	DropoffAddress string
	MovingDate     string
	Service        string
	Description    string
}

// BookingService implements the booking lifecycle state machine.
type BookingService struct {
	bookings repository.BookingStore
	users    repository.UserStore
	sink     mailer.Sink
	log      zerolog.Logger
}

func NewBookingService(bookings repository.BookingStore, users repository.UserStore, sink mailer.Sink, log zerolog.Logger) *BookingService {
	return &BookingService{bookings: bookings, users: users, sink: sink, log: log}
}

func parseWireDate(raw string) (time.Time, error) {
	t, err := time.Parse(WireDateFormat, raw)
	if err != nil {
		return time.Time{}, apperr.Newf(apperr.KindValidation, "moving_date must match %q", WireDateFormat)
	}
	return t, nil
}

// Create submits a new booking. Status always starts at Pending; when
// a user with the booking email already exists the booking is linked
// to them immediately.
func (s *BookingService) Create(ctx context.Context, cmd CreateBookingCommand) (*model.Booking, error) {
	if cmd.Email == "" || cmd.FirstName == "" || cmd.DropoffAddress == "" || cmd.Service == "" {
		return nil, apperr.New(apperr.KindValidation, "first_name, email, dropoff_address and service are required")
	}
	movingDate, err := parseWireDate(cmd.MovingDate)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		FirstName:      cmd.FirstName,
		LastName:       cmd.LastName,
		Email:          cmd.Email,
		PhoneNumber:    cmd.PhoneNumber,
		PickupAddress:  cmd.PickupAddress,
		DropoffAddress: cmd.DropoffAddress,
		MovingDate:     movingDate,
		Service:        cmd.Service,
		SubServices:    cmd.SubServices,
		Description:    cmd.Description,
		Status:         model.StatusPending,
		AgreedPrice:    "0",
	}
	if user, err := s.users.GetByEmail(ctx, cmd.Email); err == nil {
		booking.UserUID = &user.UID
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}
	s.notify(ctx, booking, "Booking Received", queue.TemplateBookingCreated)
	return booking, nil
}

func (s *BookingService) Get(ctx context.Context, uid string) (*model.Booking, error) {
	return s.bookings.GetByUID(ctx, uid)
}

func (s *BookingService) ListAll(ctx context.Context) ([]model.Booking, error) {
	return s.bookings.List(ctx)
}

// ListForUser returns a user's bookings. Non-admins may only read
// their own.
func (s *BookingService) ListForUser(ctx context.Context, claims *utils.Claims, userUID string) ([]model.Booking, error) {
	if claims.User.Role != model.RoleAdmin && claims.User.UID != userUID {
		return nil, apperr.New(apperr.KindForbidden, "cannot read another user's bookings")
	}
	return s.bookings.ListByUser(ctx, userUID)
}

// Update rewrites contact and move details while the booking is not in
// a terminal state.
func (s *BookingService) Update(ctx context.Context, uid string, cmd UpdateBookingCommand) (*model.Booking, error) {
	booking, err := s.bookings.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return nil, apperr.Newf(apperr.KindInvalidStateTransition, "booking already %s", lower(booking.Status))
	}
	movingDate, err := parseWireDate(cmd.MovingDate)
	if err != nil {
		return nil, err
	}
	fields := repository.UpdateBookingFields{
		FirstName:      cmd.FirstName,
		LastName:       cmd.LastName,
		PhoneNumber:    cmd.PhoneNumber,
		PickupAddress:  cmd.PickupAddress,
		DropoffAddress: cmd.DropoffAddress,
		MovingDate:     movingDate,
		Service:        cmd.Service,
		Description:    cmd.Description,
	}
	if err := s.bookings.UpdateFields(ctx, uid, fields); err != nil {
		return nil, err
	}
	return s.bookings.GetByUID(ctx, uid)
}

// Reschedule changes only the moving date, allowed while the booking
// is not terminal.
func (s *BookingService) Reschedule(ctx context.Context, uid, rawDate string) (*model.Booking, error) {
	booking, err := s.bookings.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return nil, apperr.Newf(apperr.KindInvalidStateTransition, "booking already %s", lower(booking.Status))
	}
	movingDate, err := parseWireDate(rawDate)
	if err != nil {
		return nil, err
	}
	if err := s.bookings.Reschedule(ctx, uid, movingDate); err != nil {
		return nil, err
	}
	booking.MovingDate = movingDate
	return booking, nil
}

// SetStatus is the administrative override. It validates the value but
// deliberately bypasses the transition guards; it exists as a trusted
// escape hatch.
func (s *BookingService) SetStatus(ctx context.Context, uid string, status model.BookingStatus) (*model.Booking, error) {
	if !status.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "unknown booking status %q", string(status))
	}
	booking, err := s.bookings.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := s.bookings.UpdateStatus(ctx, uid, status); err != nil {
		return nil, err
	}
	booking.Status = status
	return booking, nil
}

// SetAgreedPrice attaches the agreed price, permitted only while the
// booking is still Pending.
func (s *BookingService) SetAgreedPrice(ctx context.Context, uid, price string) (*model.Booking, error) {
	amount, err := strconv.ParseFloat(price, 64)
	if err != nil || amount < 0 {
		return nil, apperr.New(apperr.KindValidation, "agreed price must be a non-negative decimal")
	}
	booking, err := s.bookings.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.StatusPending {
		return nil, apperr.Newf(apperr.KindInvalidStateTransition, "booking already %s", lower(booking.Status))
	}
	if err := s.bookings.UpdateAgreedPrice(ctx, uid, price); err != nil {
		return nil, err
	}
	booking.AgreedPrice = price
	return booking, nil
}

// Cancel moves a Pending booking to Cancelled. Only the owning user
// (or an admin) may cancel, and only while Pending.
func (s *BookingService) Cancel(ctx context.Context, uid string, claims *utils.Claims) (*model.Booking, error) {
	booking, err := s.bookings.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(booking, claims); err != nil {
		return nil, err
	}
	if !booking.Status.CanTransition(model.StatusCancelled) {
		return nil, apperr.Newf(apperr.KindInvalidStateTransition, "booking already %s", lower(booking.Status))
	}
	if err := s.bookings.UpdateStatus(ctx, uid, model.StatusCancelled); err != nil {
		return nil, err
	}
	booking.Status = model.StatusCancelled
	s.notify(ctx, booking, "Booking Cancelled", queue.TemplateBookingCancelled)
	return booking, nil
}

// Reject moves a Pending booking to Rejected. Admin only; the route
// guard enforces the role, the service enforces the state.
func (s *BookingService) Reject(ctx context.Context, uid string) (*model.Booking, error) {
	booking, err := s.bookings.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !booking.Status.CanTransition(model.StatusRejected) {
		return nil, apperr.Newf(apperr.KindInvalidStateTransition, "booking already %s", lower(booking.Status))
	}
	if err := s.bookings.UpdateStatus(ctx, uid, model.StatusRejected); err != nil {
		return nil, err
	}
	booking.Status = model.StatusRejected
	s.notify(ctx, booking, "Booking Update", queue.TemplateBookingRejected)
	return booking, nil
}

// Delete removes a booking entirely. Only the owner may delete, and
// only while the booking is still Pending.
func (s *BookingService) Delete(ctx context.Context, uid string, claims *utils.Claims) error {
	booking, err := s.bookings.GetByUID(ctx, uid)
	if err != nil {
		return err
	}
	if err := s.requireOwner(booking, claims); err != nil {
		return err
	}
	if booking.Status != model.StatusPending {
		return apperr.Newf(apperr.KindInvalidStateTransition, "booking already %s", lower(booking.Status))
	}
	return s.bookings.Delete(ctx, uid)
}

func (s *BookingService) requireOwner(booking *model.Booking, claims *utils.Claims) error {
	if claims.User.Role == model.RoleAdmin {
		return nil
	}
	if booking.UserUID != nil && *booking.UserUID == claims.User.UID {
		return nil
	}
	return apperr.New(apperr.KindForbidden, "not the booking owner")
}

func (s *BookingService) notify(ctx context.Context, b *model.Booking, subject, template string) {
	event := queue.EmailEvent{
		Recipients: []string{b.Email},
		Subject:    subject,
		Template:   template,
		Context: map[string]string{
			"name":        b.FirstName,
			"booking_uid": b.UID,
			"moving_date": b.MovingDate.Format(WireDateFormat),
		},
	}
	if err := s.sink.Send(ctx, event); err != nil {
		s.log.Error().Err(err).Str("booking_uid", b.UID).Str("template", template).
			Msg("queue booking email")
	}
}

func lower(s model.BookingStatus) string {
	b := []byte(string(s))
	if len(b) > 0 && b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
