package renderer

import "strings"

var crawlerTokens = []string{
	"bot", "crawler", "spider", "slurp", "facebookexternalhit", "embedly",
	"whatsapp", "telegram", "discord", "skypeuripreview", "quora link preview",
}

// IsCrawler guesses from the User-Agent whether the client is a bot or a
// link-preview fetcher rather than a browser.
func IsCrawler(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return false
	}
	for _, token := range crawlerTokens {
		if strings.Contains(ua, token) {
			return true
		}
	}
	return false
}
