package domain

import "fmt"

type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTikTok    Platform = "tiktok"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformThreads   Platform = "threads"
)

// CredentialSchema describes the identifiers a platform's token bundle must
// carry next to the access token.
type CredentialSchema struct {
	Identifiers []string
	Expires     bool
}

type PlatformSpec struct {
	Platform    Platform
	DisplayName string
	Credentials CredentialSchema
}

var platformSpecs = []PlatformSpec{
	{Platform: PlatformLinkedIn, DisplayName: "LinkedIn", Credentials: CredentialSchema{Identifiers: []string{"profile_id"}, Expires: true}},
	{Platform: PlatformTikTok, DisplayName: "TikTok", Credentials: CredentialSchema{Identifiers: []string{"user_id"}, Expires: true}},
	{Platform: PlatformFacebook, DisplayName: "Facebook", Credentials: CredentialSchema{Identifiers: []string{"page_id"}}},
	{Platform: PlatformInstagram, DisplayName: "Instagram", Credentials: CredentialSchema{Identifiers: []string{"business_id"}}},
	{Platform: PlatformTwitter, DisplayName: "Twitter", Credentials: CredentialSchema{Identifiers: []string{"user_id"}}},
	{Platform: PlatformThreads, DisplayName: "Threads", Credentials: CredentialSchema{Identifiers: []string{"user_id"}}},
}

// Platforms returns every supported platform in canonical order.
func Platforms() []Platform {
	out := make([]Platform, 0, len(platformSpecs))
	for _, spec := range platformSpecs {
		out = append(out, spec.Platform)
	}
	return out
}

func SpecFor(p Platform) (PlatformSpec, error) {
	for _, spec := range platformSpecs {
		if spec.Platform == p {
			return spec, nil
		}
	}
	return PlatformSpec{}, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, p)
}

func (p Platform) Valid() bool {
	_, err := SpecFor(p)
	return err == nil
}

func ParsePlatform(raw string) (Platform, error) {
	p := Platform(raw)
	if _, err := SpecFor(p); err != nil {
		return "", err
	}
	return p, nil
}

func platformIndex(p Platform) int {
	for i, spec := range platformSpecs {
		if spec.Platform == p {
			return i
		}
	}
	return len(platformSpecs)
}
