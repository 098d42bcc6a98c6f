package domain

import "fmt"

// Feature is a metered capability. The set is closed.
type Feature string

const (
	FeatureAIContent        Feature = "aiContent"
	FeatureSocialPosts      Feature = "socialPosts"
	FeatureEmailCampaigns   Feature = "emailCampaigns"
	FeatureReviewsMonitored Feature = "reviewsMonitored"
)

var features = []Feature{
	FeatureAIContent,
	FeatureSocialPosts,
	FeatureEmailCampaigns,
	FeatureReviewsMonitored,
}

// Features returns every metered feature in display order.
func Features() []Feature {
	out := make([]Feature, len(features))
	copy(out, features)
	return out
}

func (f Feature) Valid() bool {
	for _, known := range features {
		if f == known {
			return true
		}
	}
	return false
}

func (f Feature) Label() string {
	switch f {
	case FeatureAIContent:
		return "AI content"
	case FeatureSocialPosts:
		return "Social posts"
	case FeatureEmailCampaigns:
		return "Email campaigns"
	case FeatureReviewsMonitored:
		return "Reviews monitored"
	default:
		return string(f)
	}
}

func ParseFeature(raw string) (Feature, error) {
	f := Feature(raw)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, raw)
	}
	return f, nil
}
