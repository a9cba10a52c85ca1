package handlers

import (
	"time"

	"github.com/serroba/shortlink/internal/analytics"
)

// RedirectRequest is the request for following a short link.
type RedirectRequest struct {
	Code string `doc:"The short code" example:"abc123" maxLength:"20" path:"code"`
}

// RedirectResponse sends the client to the destination.
type RedirectResponse struct {
	Status  int
	Headers struct {
		Location     string `doc:"The destination URL" header:"Location"`
		CacheControl string `header:"Cache-Control"`
	}
}

// LinkBody is a short link as returned to its owner.
type LinkBody struct {
	Code        string     `doc:"The short code" example:"abc123" json:"code"`
	ShortURL    string     `doc:"The full short URL" example:"http://localhost:8888/abc123" json:"shortUrl"`
	Destination string     `doc:"The destination URL" example:"https://example.com/long/path" json:"destination"`
	CreatedAt   time.Time  `doc:"Creation time" json:"createdAt"`
	ExpiresAt   *time.Time `doc:"Time after which the link is gone" json:"expiresAt,omitempty"`
	ClickLimit  *int64     `doc:"Number of redirects allowed" json:"clickLimit,omitempty"`
	ClickCount  int64      `doc:"Number of redirects granted" json:"clickCount"`
}

// CreateLinkBody describes a link to create.
type CreateLinkBody struct {
	Destination string     `doc:"The URL to shorten" example:"https://example.com/long/path" json:"destination"`
	Alias       string     `doc:"Custom short code; generated when empty" example:"launch" json:"alias,omitempty"`
	ExpiresAt   *time.Time `doc:"Time after which the link is gone" json:"expiresAt,omitempty"`
	ClickLimit  *int64     `doc:"Number of redirects allowed" json:"clickLimit,omitempty" minimum:"1"`
}

// CreateLinkRequest is the request for creating a short link.
type CreateLinkRequest struct {
	Body CreateLinkBody
}

// CreateLinkResponse is the response for a created short link.
type CreateLinkResponse struct {
	Headers struct {
		Location string `doc:"The short URL location" header:"Location"`
	}
	Body LinkBody
}

// BulkCreateRequest creates several links at once.
type BulkCreateRequest struct {
	Body struct {
		Links []CreateLinkBody `doc:"Links to create" json:"links" minItems:"1"`
	}
}

// BulkItem is the outcome of one link of a bulk create.
type BulkItem struct {
	Index int       `doc:"Position in the request" json:"index"`
	Link  *LinkBody `json:"link,omitempty"`
	Error string    `doc:"Why the link was not created" json:"error,omitempty"`
}

// BulkCreateResponse reports each item of a bulk create.
type BulkCreateResponse struct {
	Body struct {
		Created int        `doc:"Number of links created" json:"created"`
		Results []BulkItem `json:"results"`
	}
}

// ListLinksRequest selects a page of the caller's links.
type ListLinksRequest struct {
	Page int `default:"1" minimum:"1" query:"page"`
	Size int `default:"20" maximum:"100" minimum:"1" query:"size"`
}

// ListLinksResponse is a page of the caller's links, newest first.
type ListLinksResponse struct {
	Body struct {
		Links []LinkBody `json:"links"`
		Page  int        `json:"page"`
		Size  int        `json:"size"`
		Total int64      `json:"total"`
	}
}

// LinkRequest addresses one of the caller's links.
type LinkRequest struct {
	Code string `doc:"The short code" example:"abc123" maxLength:"20" path:"code"`
}

// LinkResponse is a single link.
type LinkResponse struct {
	Body LinkBody
}

// UpdateLinkRequest edits one of the caller's links. Omitted fields are left as they are.
type UpdateLinkRequest struct {
	Code string `doc:"The short code" example:"abc123" maxLength:"20" path:"code"`
	Body struct {
		Destination     *string    `doc:"New destination URL" json:"destination,omitempty"`
		ExpiresAt       *time.Time `doc:"New expiry" json:"expiresAt,omitempty"`
		ClearExpiresAt  bool       `doc:"Remove the expiry" json:"clearExpiresAt,omitempty"`
		ClickLimit      *int64     `doc:"New click limit" json:"clickLimit,omitempty" minimum:"1"`
		ClearClickLimit bool       `doc:"Remove the click limit" json:"clearClickLimit,omitempty"`
	}
}

// AnalyticsRequest selects a link and a trailing window of days.
type AnalyticsRequest struct {
	Code string `doc:"The short code" example:"abc123" maxLength:"20" path:"code"`
	Days int    `doc:"Trailing window in days; the server default when 0" query:"days"`
}

// AnalyticsResponse is a link's click report.
type AnalyticsResponse struct {
	Body *analytics.Report
}

// ExportResponse is a downloadable report with raw events.
type ExportResponse struct {
	Headers struct {
		ContentDisposition string `header:"Content-Disposition"`
	}
	Body *analytics.Export
}
