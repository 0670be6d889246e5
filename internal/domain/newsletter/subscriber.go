package newsletter

import "time"

const (
	StatusActive       = "active"
	StatusUnsubscribed = "unsubscribed"
	StatusBounced      = "bounced"
)

const (
	SourceWebsite = "website"
	SourceAdmin   = "admin"
	SourceImport  = "import"
)

type Preferences struct {
	Promotions   bool `json:"promotions"`
	NewProducts  bool `json:"newProducts"`
	StyleTips    bool `json:"styleTips"`
	OrderUpdates bool `json:"orderUpdates"`
}

func DefaultPreferences() Preferences {
	return Preferences{Promotions: true, NewProducts: true, StyleTips: true, OrderUpdates: true}
}

type Metadata struct {
	IPAddress   string `json:"ipAddress,omitempty"`
	UserAgent   string `json:"userAgent,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`
}

// Merge overwrites the fields set in other.
func (m Metadata) Merge(other Metadata) Metadata {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&m.IPAddress, other.IPAddress)
	set(&m.UserAgent, other.UserAgent)
	set(&m.Referrer, other.Referrer)
	set(&m.UTMSource, other.UTMSource)
	set(&m.UTMMedium, other.UTMMedium)
	set(&m.UTMCampaign, other.UTMCampaign)
	return m
}

type Subscriber struct {
	ID             int64       `json:"id"`
	Email          string      `json:"email"`
	FirstName      string      `json:"firstName"`
	LastName       string      `json:"lastName"`
	Status         string      `json:"status"`
	Source         string      `json:"source"`
	SubscribedAt   time.Time   `json:"subscribedAt"`
	UnsubscribedAt *time.Time  `json:"unsubscribedAt,omitempty"`
	Preferences    Preferences `json:"preferences"`
	Tags           []string    `json:"tags"`
	Metadata       Metadata    `json:"metadata"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`

	IsActive bool `json:"isActive"`
}

func (s *Subscriber) Fill() {
	s.IsActive = s.Status == StatusActive
	if s.Tags == nil {
		s.Tags = []string{}
	}
}

// MergeTags appends tags not already present, keeping order.
func MergeTags(have, add []string) []string {
	seen := make(map[string]bool, len(have))
	out := append([]string{}, have...)
	for _, t := range have {
		seen[t] = true
	}
	for _, t := range add {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
