package bookings

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DraftValidator checks the shape of a draft before anything is loaded.
type DraftValidator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewDraftValidator registers the booking rules on a fresh validator.
func NewDraftValidator(now func() time.Time) *DraftValidator {
	if now == nil {
		now = time.Now
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return f.Name
		}
		return name
	})

	dv := &DraftValidator{validate: v, now: now}
	mustRegister(v, "futurestart", dv.futureStart)
	mustRegister(v, "locationtype", locationType)
	v.RegisterStructValidation(draftRules, Draft{})
	v.RegisterStructValidation(participantRules, Participant{})
	return dv
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("bookings: register %s: %v", tag, err))
	}
}

// Validate returns a VALIDATION_ERROR listing every offending field.
func (dv *DraftValidator) Validate(d Draft) error {
	err := dv.validate.Struct(d)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Kind: KindValidation, Message: "invalid booking request", Err: err}
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return &Error{Kind: KindValidation, Message: strings.Join(problems, "; "), Err: err}
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Draft.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "futurestart":
		return field + " must be in the future"
	case "locationtype":
		return field + " must be at_home or at_salon"
	case "address_required":
		return "address is required for at_home bookings"
	case "location_required":
		return "location_id is required for at_salon bookings"
	case "coordinates_pair":
		return "address latitude and longitude must be given together"
	case "contact_required":
		return field + " needs an email or phone"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func (dv *DraftValidator) futureStart(fl validator.FieldLevel) bool {
	start, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return start.After(dv.now())
}

var locationType validator.Func = func(fl validator.FieldLevel) bool {
	switch LocationType(fl.Field().String()) {
	case LocationAtHome, LocationAtSalon:
		return true
	}
	return false
}

func draftRules(sl validator.StructLevel) {
	d := sl.Current().Interface().(Draft)
	switch d.LocationType {
	case LocationAtHome:
		if d.Address == nil || strings.TrimSpace(d.Address.Line1) == "" {
			sl.ReportError(d.Address, "address", "Address", "address_required", "")
		}
	case LocationAtSalon:
		if strings.TrimSpace(d.LocationID) == "" {
			sl.ReportError(d.LocationID, "location_id", "LocationID", "location_required", "")
		}
	}
	if d.Address != nil && (d.Address.Latitude == nil) != (d.Address.Longitude == nil) {
		sl.ReportError(d.Address, "address", "Address", "coordinates_pair", "")
	}
}

func participantRules(sl validator.StructLevel) {
	p := sl.Current().Interface().(Participant)
	if strings.TrimSpace(p.Email) == "" && strings.TrimSpace(p.Phone) == "" {
		sl.ReportError(p.Email, "email", "Email", "contact_required", "")
	}
}
