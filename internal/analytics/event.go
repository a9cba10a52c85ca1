package analytics

import (
	"time"

	"github.com/google/uuid"
)

// Draft is a click as observed by the resolver, before it is recorded.
type Draft struct {
	LinkID    int64
	Code      string
	ClickedAt time.Time
	IPAddress string
	UserAgent string
	Referrer  string
	Client    Client
}

// ClickEvent is one recorded visit of a link. Events are append-only.
type ClickEvent struct {
	ID         uuid.UUID `json:"id"`
	LinkID     int64     `json:"linkId"`
	ClickedAt  time.Time `json:"clickedAt"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
	Country    *string   `json:"country"`
	City       *string   `json:"city"`
	DeviceType *string   `json:"deviceType"`
	Browser    *string   `json:"browser"`
	OS         *string   `json:"os"`
	IsMobile   bool      `json:"isMobile"`
	IsBot      bool      `json:"isBot"`
}

// NewClickEvent turns a draft into an event with a fresh ID.
// Country and city stay empty until geolocation exists.
func NewClickEvent(d Draft) *ClickEvent {
	return &ClickEvent{
		ID:         uuid.New(),
		LinkID:     d.LinkID,
		ClickedAt:  d.ClickedAt.UTC(),
		IPAddress:  d.IPAddress,
		UserAgent:  d.UserAgent,
		Referrer:   d.Referrer,
		DeviceType: optional(d.Client.Device),
		Browser:    optional(d.Client.Browser),
		OS:         optional(d.Client.OS),
		IsMobile:   d.Client.Mobile,
		IsBot:      d.Client.Bot,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
