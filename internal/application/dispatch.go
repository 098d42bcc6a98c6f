package application

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bnema/marketwin/internal/domain"
)

// Profile describes how content is shaped for one platform. MaxChars of zero
// means no length limit.
type Profile struct {
	MaxChars       int
	TracksHashtags bool
	Structured     bool
}

func defaultProfiles() map[domain.Platform]Profile {
	return map[domain.Platform]Profile{
		domain.PlatformTwitter:   {MaxChars: 280},
		domain.PlatformThreads:   {MaxChars: 500},
		domain.PlatformLinkedIn:  {MaxChars: 3000},
		domain.PlatformInstagram: {MaxChars: 2200, TracksHashtags: true, Structured: true},
		domain.PlatformTikTok:    {MaxChars: 2200, TracksHashtags: true, Structured: true},
		domain.PlatformFacebook:  {},
	}
}

var (
	hashtagPattern      = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	hashtagStripPattern = regexp.MustCompile(`[ \t]*#[\p{L}\p{N}_]+`)
)

type DispatchAdapter struct {
	profiles      map[domain.Platform]Profile
	stripHashtags bool
}

type DispatchOption func(*DispatchAdapter)

func WithProfile(platform domain.Platform, profile Profile) DispatchOption {
	return func(a *DispatchAdapter) {
		a.profiles[platform] = profile
	}
}

// WithStripHashtags removes hashtags from the body of platforms that carry
// them in a separate field.
func WithStripHashtags(strip bool) DispatchOption {
	return func(a *DispatchAdapter) {
		a.stripHashtags = strip
	}
}

func NewDispatchAdapter(opts ...DispatchOption) *DispatchAdapter {
	a := &DispatchAdapter{profiles: defaultProfiles()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Adapt shapes content for each target platform.
func (a *DispatchAdapter) Adapt(content string, platforms []domain.Platform) (map[domain.Platform]domain.Payload, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrInvalidContent
	}

	payloads := make(map[domain.Platform]domain.Payload, len(platforms))
	for _, platform := range platforms {
		payload, err := a.Shape(content, platform)
		if err != nil {
			return nil, err
		}
		payloads[platform] = payload
	}

	return payloads, nil
}

func (a *DispatchAdapter) Shape(content string, platform domain.Platform) (domain.Payload, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Payload{}, domain.ErrInvalidContent
	}
	if _, err := domain.SpecFor(platform); err != nil {
		return domain.Payload{}, err
	}
	profile, ok := a.profiles[platform]
	if !ok {
		return domain.Payload{}, fmt.Errorf("%w: no dispatch profile for %q", domain.ErrUnsupportedPlatform, platform)
	}

	payload := domain.Payload{
		Platform:   platform,
		Content:    content,
		Structured: profile.Structured,
	}

	if profile.TracksHashtags {
		payload.Hashtags = ExtractHashtags(content)
		if a.stripHashtags {
			payload.Content = strings.TrimSpace(hashtagStripPattern.ReplaceAllString(payload.Content, ""))
		}
	}

	if profile.MaxChars > 0 {
		payload.Content, payload.Truncated = truncate(payload.Content, profile.MaxChars)
	}

	return payload, nil
}

// ExtractHashtags returns the tag names in order of appearance, without '#'.
func ExtractHashtags(content string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}

// truncate cuts s to at most n characters. It does not look for word breaks.
func truncate(s string, n int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= n {
		return s, false
	}
	return string(runes[:n]), true
}
