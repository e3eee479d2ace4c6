// Package form holds the table reservation draft, validates it field by field
// and gates submission while a request is in flight.
package form

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/cafe-bookings/internal/utils"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/domain"
)

type Field string

const (
	FieldName            Field = "name"
	FieldPhone           Field = "phone"
	FieldEmail           Field = "email"
	FieldDate            Field = "date"
	FieldTime            Field = "time"
	FieldGuests          Field = "guests"
	FieldSpecialRequests Field = "specialRequests"
)

// Fields lists every draft field in form order.
var Fields = []Field{FieldName, FieldPhone, FieldEmail, FieldDate, FieldTime, FieldGuests, FieldSpecialRequests}

const (
	MsgName       = "Введите имя (не менее 2 символов)"
	MsgPhone      = "Введите корректный номер телефона"
	MsgEmail      = "Введите корректный email"
	MsgDate       = "Выберите дату"
	MsgDatePast   = "Дата не может быть в прошлом"
	MsgTime       = "Выберите время"
	MsgTimeSlot   = "Выберите время из списка"
	MsgTimePassed = "Это время уже прошло, выберите более позднее"
	MsgGuests     = "Укажите количество гостей"
)

var (
	ErrUnknownField = errors.New("unknown form field")
	ErrInvalid      = errors.New("form has validation errors")
)

// Options carries the café's booking grid and the clock.
type Options struct {
	TimeSlots    []string
	GuestOptions []string
	Location     *time.Location
	Now          func() time.Time
}

// DefaultOptions opens half-hour slots from 10:00 to 21:30 for parties of
// one to nine, plus "10+".
func DefaultOptions() Options {
	var slots []string
	for h := 10; h <= 21; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h), fmt.Sprintf("%02d:30", h))
	}
	guests := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10+"}
	return Options{
		TimeSlots:    slots,
		GuestOptions: guests,
		Location:     time.Local,
		Now:          time.Now,
	}
}

// Draft is the raw form state as the visitor typed it.
type Draft struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Guests          string `json:"guests"`
	SpecialRequests string `json:"specialRequests"`
}

type Form struct {
	mu         sync.Mutex
	opts       Options
	draft      Draft
	errors     map[Field]string
	submitting bool
}

func New(opts Options) *Form {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Form{opts: opts, errors: map[Field]string{}}
}

// SetField replaces one draft field and clears its recorded error. Phone input
// is stored normalized.
func (f *Form) SetField(field Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch field {
	case FieldName:
		f.draft.Name = value
	case FieldPhone:
		f.draft.Phone = utils.NormalizePhone(value)
	case FieldEmail:
		f.draft.Email = value
	case FieldDate:
		f.draft.Date = value
	case FieldTime:
		f.draft.Time = value
	case FieldGuests:
		f.draft.Guests = value
	case FieldSpecialRequests:
		f.draft.SpecialRequests = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	delete(f.errors, field)
	return nil
}

// Fill applies every field of d through SetField.
func (f *Form) Fill(d Draft) {
	values := map[Field]string{
		FieldName: d.Name, FieldPhone: d.Phone, FieldEmail: d.Email, FieldDate: d.Date,
		FieldTime: d.Time, FieldGuests: d.Guests, FieldSpecialRequests: d.SpecialRequests,
	}
	for _, field := range Fields {
		_ = f.SetField(field, values[field])
	}
}

func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Validate runs every rule, replaces the stored errors and reports success.
func (f *Form) Validate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.errors = f.check()
	return len(f.errors) == 0
}

// IsValid recomputes validity from the current draft without touching the
// stored errors.
func (f *Form) IsValid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.check()) == 0
}

func (f *Form) Errors() map[Field]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[Field]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// Request converts a valid draft into a reservation request.
func (f *Form) Request() (domain.ReservationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.check()) > 0 {
		return domain.ReservationRequest{}, ErrInvalid
	}
	date, _ := time.ParseInLocation(domain.DateLayout, strings.TrimSpace(f.draft.Date), f.opts.Location)
	return domain.ReservationRequest{
		Name:            utils.NormalizeString(f.draft.Name),
		Phone:           f.draft.Phone,
		Email:           utils.NormalizeEmail(f.draft.Email),
		Date:            date,
		Time:            f.draft.Time,
		Guests:          f.draft.Guests,
		SpecialRequests: utils.NormalizeString(f.draft.SpecialRequests),
	}, nil
}

// BeginSubmit sets the submitting flag. It returns false when a submission is
// already in flight.
func (f *Form) BeginSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return false
	}
	f.submitting = true
	return true
}

func (f *Form) EndSubmit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
}

func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Reset restores the empty draft and clears errors and the submitting flag.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.draft = Draft{}
	f.errors = map[Field]string{}
	f.submitting = false
}

func (f *Form) check() map[Field]string {
	errs := map[Field]string{}
	d := f.draft

	if utils.RuneLen(strings.TrimSpace(d.Name)) < 2 {
		errs[FieldName] = MsgName
	}
	if !utils.IsValidPhone(d.Phone) {
		errs[FieldPhone] = MsgPhone
	}
	if strings.TrimSpace(d.Email) != "" && !utils.IsValidEmail(d.Email) {
		errs[FieldEmail] = MsgEmail
	}

	now := f.opts.Now().In(f.opts.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, f.opts.Location)

	date, dateErr := time.ParseInLocation(domain.DateLayout, strings.TrimSpace(d.Date), f.opts.Location)
	switch {
	case dateErr != nil:
		errs[FieldDate] = MsgDate
	case date.Before(today):
		errs[FieldDate] = MsgDatePast
	}

	switch {
	case d.Time == "":
		errs[FieldTime] = MsgTime
	case !slices.Contains(f.opts.TimeSlots, d.Time):
		errs[FieldTime] = MsgTimeSlot
	case dateErr == nil && date.Equal(today):
		slot, err := time.ParseInLocation("15:04", d.Time, f.opts.Location)
		if err != nil {
			errs[FieldTime] = MsgTimeSlot
			break
		}
		at := time.Date(today.Year(), today.Month(), today.Day(), slot.Hour(), slot.Minute(), 0, 0, f.opts.Location)
		if !at.After(now) {
			errs[FieldTime] = MsgTimePassed
		}
	}

	if !slices.Contains(f.opts.GuestOptions, d.Guests) {
		errs[FieldGuests] = MsgGuests
	}
	return errs
}
