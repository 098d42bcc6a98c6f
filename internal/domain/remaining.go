package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type RemainingKind string

const (
	RemainingUnlimited   RemainingKind = "unlimited"
	RemainingUnavailable RemainingKind = "unavailable"
	RemainingFinite      RemainingKind = "finite"
)

// Remaining is how many more units of a feature an account may use this period.
type Remaining struct {
	Kind  RemainingKind
	Count int64
}

func Unlimited() Remaining { return Remaining{Kind: RemainingUnlimited} }

func Unavailable() Remaining { return Remaining{Kind: RemainingUnavailable} }

func Finite(n int64) Remaining {
	if n < 0 {
		n = 0
	}
	return Remaining{Kind: RemainingFinite, Count: n}
}

// RemainingFor derives the remaining count from a quota and the usage so far.
func RemainingFor(quota Quota, used int64) Remaining {
	switch {
	case quota.Unlimited():
		return Unlimited()
	case quota.Disabled():
		return Unavailable()
	default:
		return Finite(int64(quota) - used)
	}
}

func (r Remaining) String() string {
	switch r.Kind {
	case RemainingUnlimited:
		return "unlimited"
	case RemainingUnavailable:
		return "0"
	default:
		return strconv.FormatInt(r.Count, 10)
	}
}

// MarshalJSON encodes unlimited as the string "unlimited" and everything else
// as a number.
func (r Remaining) MarshalJSON() ([]byte, error) {
	if r.Kind == RemainingUnlimited {
		return json.Marshal("unlimited")
	}
	if r.Kind == RemainingUnavailable {
		return []byte("0"), nil
	}
	return []byte(strconv.FormatInt(r.Count, 10)), nil
}

// UnmarshalJSON accepts the forms MarshalJSON produces. Zero decodes as a
// finite count since the wire form does not tell it apart from unavailable.
func (r *Remaining) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		if text != "unlimited" {
			return fmt.Errorf("decode remaining: unexpected value %q", text)
		}
		*r = Unlimited()
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode remaining: %w", err)
	}
	*r = Finite(n)
	return nil
}

func (r Remaining) Exhausted() bool {
	return r.Kind == RemainingUnavailable || (r.Kind == RemainingFinite && r.Count == 0)
}
