package analytics

import (
	"strings"
	"time"

	"github.com/mssola/useragent"
	gocache "github.com/patrickmn/go-cache"
)

// Device families.
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"
)

// maxMemoLength keeps unusually long agent strings out of the memo.
const maxMemoLength = 512

// botSignatures catches clients that do not identify as bots in the usual way.
var botSignatures = []string{
	"bot", "crawler", "spider", "slurp", "curl/", "wget/", "python-requests",
	"go-http-client", "headlesschrome", "facebookexternalhit", "preview",
}

// Client is the classification of a user-agent string.
type Client struct {
	Device  string
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

// Classifier parses user-agent strings. Results are memoized by raw string.
type Classifier struct {
	memo *gocache.Cache
}

// NewClassifier creates a classifier whose memo entries live for ttl.
// A ttl of zero disables the memo.
func NewClassifier(ttl time.Duration) *Classifier {
	c := &Classifier{}
	if ttl > 0 {
		c.memo = gocache.New(ttl, 2*ttl)
	}

	return c
}

// Classify returns the device, browser and OS families of raw.
func (c *Classifier) Classify(raw string) Client {
	if raw == "" {
		return Client{}
	}

	if c.memo != nil {
		if v, ok := c.memo.Get(raw); ok {
			return v.(Client)
		}
	}

	client := classify(raw)

	if c.memo != nil && len(raw) <= maxMemoLength {
		c.memo.SetDefault(raw, client)
	}

	return client
}

func classify(raw string) Client {
	ua := useragent.New(raw)

	browser, _ := ua.Browser()
	client := Client{
		Browser: browser,
		OS:      ua.OSInfo().Name,
		Mobile:  ua.Mobile(),
		Bot:     ua.Bot() || hasBotSignature(raw),
	}

	platform := ua.Platform()

	switch {
	case client.Bot:
		client.Device = DeviceBot
		client.Mobile = false
	case platform == "iPad" || strings.Contains(raw, "Tablet") ||
		(strings.Contains(raw, "Android") && !strings.Contains(raw, "Mobile")):
		client.Device = DeviceTablet
	case client.Mobile:
		client.Device = DeviceMobile
	default:
		client.Device = DeviceDesktop
	}

	return client
}

func hasBotSignature(raw string) bool {
	lower := strings.ToLower(raw)

	for _, sig := range botSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}

	return false
}
