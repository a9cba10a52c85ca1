package analytics_test

import (
	"testing"
	"time"

	"github.com/serroba/shortlink/internal/analytics"
	"github.com/stretchr/testify/assert"
)

const (
	uaChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaIPhone = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaIPad = "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"
	uaGooglebot = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestClassifier(t *testing.T) {
	classifier := analytics.NewClassifier(time.Minute)

	t.Run("desktop browser", func(t *testing.T) {
		client := classifier.Classify(uaChromeWindows)

		assert.Equal(t, analytics.DeviceDesktop, client.Device)
		assert.Equal(t, "Chrome", client.Browser)
		assert.Contains(t, client.OS, "Windows")
		assert.False(t, client.Mobile)
		assert.False(t, client.Bot)
	})

	t.Run("phone", func(t *testing.T) {
		client := classifier.Classify(uaIPhone)

		assert.Equal(t, analytics.DeviceMobile, client.Device)
		assert.Equal(t, "Safari", client.Browser)
		assert.True(t, client.Mobile)
	})

	t.Run("tablet", func(t *testing.T) {
		assert.Equal(t, analytics.DeviceTablet, classifier.Classify(uaIPad).Device)
	})

	t.Run("crawler", func(t *testing.T) {
		client := classifier.Classify(uaGooglebot)

		assert.Equal(t, analytics.DeviceBot, client.Device)
		assert.True(t, client.Bot)
		assert.False(t, client.Mobile)
	})

	t.Run("command line client", func(t *testing.T) {
		assert.True(t, classifier.Classify("curl/8.4.0").Bot)
	})

	t.Run("empty agent", func(t *testing.T) {
		assert.Equal(t, analytics.Client{}, classifier.Classify(""))
	})

	t.Run("memo returns the same result", func(t *testing.T) {
		assert.Equal(t, classifier.Classify(uaIPhone), classifier.Classify(uaIPhone))
	})

	t.Run("memo disabled", func(t *testing.T) {
		uncached := analytics.NewClassifier(0)

		assert.Equal(t, classifier.Classify(uaChromeWindows), uncached.Classify(uaChromeWindows))
	})
}
