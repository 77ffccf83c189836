// Package qrcode renders subscription QR codes for the podcast feed.
package qrcode

import (
	"encoding/base64"
	"fmt"
	"strings"

	qr "github.com/skip2/go-qrcode"
)

// FeedPayload is the response body of the QR endpoint.
type FeedPayload struct {
	RSSURL          string `json:"rss_url"`
	ApplePodcastURL string `json:"apple_podcasts_url"`
	QRCode          string `json:"qr_code"`
}

// ForFeed builds the QR payload for one user's RSS url. The Apple
// Podcasts link swaps the scheme for pcast://.
func ForFeed(rssURL string) (FeedPayload, error) {
	png, err := qr.Encode(rssURL, qr.Low, 256)
	if err != nil {
		return FeedPayload{}, fmt.Errorf("op=qrcode.ForFeed: %w", err)
	}
	apple := strings.Replace(rssURL, "https://", "pcast://", 1)
	apple = strings.Replace(apple, "http://", "pcast://", 1)
	return FeedPayload{
		RSSURL:          rssURL,
		ApplePodcastURL: apple,
		QRCode:          "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}
