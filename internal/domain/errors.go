package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountExists        = errors.New("account already exists")
	ErrSecretNotFound       = errors.New("secret not found")
	ErrUnknownPlan          = errors.New("unknown plan")
	ErrUnknownFeature       = errors.New("unknown feature")
	ErrUnsupportedPlatform  = errors.New("unsupported platform")
	ErrInvalidContent       = errors.New("invalid content")
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrCredentialExpired    = errors.New("platform credential expired")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrSubscriptionInactive = errors.New("subscription inactive")
	ErrPlatformNotConnected = errors.New("platform not connected")
	ErrConcurrentUpdate     = errors.New("concurrent account update")
)

type DenialCode string

const (
	DenialQuotaExceeded        DenialCode = "QUOTA_EXCEEDED"
	DenialSubscriptionInactive DenialCode = "SUBSCRIPTION_INACTIVE"
	DenialPlatformNotConnected DenialCode = "PLATFORM_NOT_CONNECTED"
)

// Denial is returned when an action is refused for entitlement reasons.
type Denial struct {
	Code      DenialCode
	Feature   Feature
	Platform  Platform
	Remaining Remaining
}

func (d *Denial) Error() string {
	if d.Platform != "" {
		return fmt.Sprintf("%s: %s (%s)", d.Feature, d.Unwrap(), d.Platform)
	}
	return fmt.Sprintf("%s: %s (remaining %s)", d.Feature, d.Unwrap(), d.Remaining)
}

func (d *Denial) Unwrap() error {
	switch d.Code {
	case DenialSubscriptionInactive:
		return ErrSubscriptionInactive
	case DenialPlatformNotConnected:
		return ErrPlatformNotConnected
	default:
		return ErrQuotaExceeded
	}
}

// IsDenial reports whether err carries an entitlement denial.
func IsDenial(err error) bool {
	var d *Denial
	return errors.As(err, &d)
}
