package aiworker

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	emailRe      = regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
	retryAfterRe = regexp.MustCompile(`try again in (\d+(?:\.\d+)?)(s|ms)`)
	staleYearRe  = regexp.MustCompile(`202[0-5]`)
)

// extractEmail pulls the first email address out of the raw request text.
// The model frequently drops or mangles emails, so the literal match wins.
func extractEmail(text string) string {
	return emailRe.FindString(text)
}

// pickAddress scans the raw text for the most plausible shipping address:
// the longest-by-commas line mentioning a country/street/city marker.
// Returns "" when nothing qualifies.
func pickAddress(text string) string {
	best := ""
	maxCommas := -1
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if len([]rune(line)) <= 15 {
			continue
		}
		if !strings.Contains(lower, "россия") && !strings.Contains(lower, "ул.") && !strings.Contains(lower, "г.") {
			continue
		}
		commas := strings.Count(line, ",")
		if commas > maxCommas {
			maxCommas = commas
			best = strings.TrimSpace(line)
		}
	}
	return best
}

// patchDeadlineYear rewrites stale model years onto the target year.
// The model is prompted with the current year but regularly answers with
// its training-data years anyway.
func patchDeadlineYear(deadline string, targetYear int) string {
	return staleYearRe.ReplaceAllString(deadline, strconv.Itoa(targetYear))
}

// parseRetryAfter derives the backoff from the provider's rate-limit
// message ("... try again in 2.5s ..."). Defaults to one second; hints
// above three seconds are not worth honoring in full when another key is
// available, so they collapse to 1.5s.
func parseRetryAfter(msg string) time.Duration {
	wait := time.Second

	m := retryAfterRe.FindStringSubmatch(msg)
	if m != nil {
		val, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			if m[2] == "s" {
				wait = time.Duration(val * float64(time.Second))
			} else {
				wait = time.Duration(val * float64(time.Millisecond))
			}
		}
	}

	if wait > 3*time.Second {
		wait = 1500 * time.Millisecond
	}
	return wait
}
