// Package account runs the client-side checks around registration.
package account

import (
	"context"
	"strings"
	"time"

	"github.com/Jeevanlr/mental-prediction/internal/gateway"
)

// MinimumAge is the youngest age allowed to register.
const MinimumAge = 14

// DateLayout is the date-of-birth format used by the registration form.
const DateLayout = "2006-01-02"

// UnderAgeWarning is shown when the date of birth is under MinimumAge.
const UnderAgeWarning = "Warning: Registration requires users to be 14 years of age or older. Please refer a parent or guardian."

// Registrar submits a registration.
type Registrar interface {
	Register(ctx context.Context, p gateway.Profile) (gateway.RegistrationOutcome, error)
}

// Service registers accounts after the age check.
type Service struct {
	registrar Registrar
	now       func() time.Time
}

// NewService creates a Service. now defaults to time.Now.
func NewService(r Registrar, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{registrar: r, now: now}
}

// Register checks the date of birth and, only if it passes, submits p.
func (s *Service) Register(ctx context.Context, p gateway.Profile) (gateway.RegistrationOutcome, error) {
	if err := CheckEligible(p.DOB, s.now()); err != nil {
		return gateway.RegistrationOutcome{}, err
	}
	return s.registrar.Register(ctx, p)
}

// CheckEligible validates the date of birth against MinimumAge.
func CheckEligible(dob string, now time.Time) error {
	dob = strings.TrimSpace(dob)
	if dob == "" {
		return &gateway.ValidationError{Field: "dob", Message: "Please enter your Date of Birth."}
	}
	born, err := time.ParseInLocation(DateLayout, dob, now.Location())
	if err != nil {
		return &gateway.ValidationError{Field: "dob", Message: "Please enter your Date of Birth as YYYY-MM-DD."}
	}
	if Age(born, now) < MinimumAge {
		return &gateway.ValidationError{Field: "dob", Message: UnderAgeWarning}
	}
	return nil
}

// Age returns completed years between born and now.
func Age(born, now time.Time) int {
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	return age
}
