package domain

// Payload is content shaped for one platform.
type Payload struct {
	Platform   Platform `json:"platform"`
	Content    string   `json:"content"`
	Hashtags   []string `json:"hashtags,omitempty"`
	Structured bool     `json:"structured"`
	Truncated  bool     `json:"truncated"`
}
