package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// LongLivedThresholdDays is roughly six months; cookies living longer are flagged.
	LongLivedThresholdDays = 183

	// Expiry values above this magnitude are Unix milliseconds rather than seconds.
	millisecondCutoff = 1e12

	// 9999-12-31 23:59:59 UTC; later instants cannot be formatted in the report.
	maxExpirySeconds = 253402300799

	secondsPerDay = 86400

	expiryLayout = "2006-01-02 15:04:05 UTC"
)

// Cookie is the scoring view of a captured cookie record.
type Cookie struct {
	Name      string
	Domain    string
	Expires   float64
	HasExpiry bool
}

// ExpiryDetail is one row of the cookie expiry report.
type ExpiryDetail struct {
	Name         string  `json:"name"`
	ExpiryDate   string  `json:"expiry_date"`
	LifespanDays float64 `json:"lifespan_days"`
	LongLived    bool    `json:"long_lived"`
}

// parseCookies converts raw cookie records. Records that are not objects are dropped;
// an uninterpretable expires value only clears that cookie's expiry.
func parseCookies(raw []any, log logrus.FieldLogger) []Cookie {
	cookies := make([]Cookie, 0, len(raw))
	for i, item := range raw {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := Cookie{}
		c.Name, _ = record["name"].(string)
		c.Domain, _ = record["domain"].(string)
		if value, present := record["expires"]; present && value != nil {
			if exp, ok := number(value); ok && expiryInRange(exp) {
				c.Expires = exp
				c.HasExpiry = exp != 0
			} else {
				log.WithFields(logrus.Fields{
					"cookie":  c.Name,
					"index":   i,
					"expires": value,
				}).Warn("skipping cookie with uninterpretable expiry")
			}
		}
		cookies = append(cookies, c)
	}
	return cookies
}

func expiryInRange(expires float64) bool {
	if expires > millisecondCutoff {
		expires /= 1000
	}
	return math.Abs(expires) <= maxExpirySeconds
}

// Lifespan converts an expires timestamp (seconds or milliseconds) into the number of
// days between now and expiry, floored at zero, along with the absolute expiry instant.
func Lifespan(expires float64, now time.Time) (float64, time.Time) {
	if expires > millisecondCutoff {
		expires /= 1000
	}
	whole, frac := math.Modf(expires)
	expiry := time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC()

	nowSeconds := float64(now.Unix()) + float64(now.Nanosecond())/float64(time.Second)
	days := (expires - nowSeconds) / secondsPerDay
	if days < 0 {
		days = 0
	}
	return days, expiry
}

// ExpiryScore is the fraction of cookies carrying expiry data whose lifespan is within the
// long-lived threshold. Lists without usable expiry data pass vacuously.
func ExpiryScore(cookies []Cookie, now time.Time) float64 {
	var total, shortLived int
	for _, c := range cookies {
		if !c.HasExpiry {
			continue
		}
		total++
		if days, _ := Lifespan(c.Expires, now); days <= LongLivedThresholdDays {
			shortLived++
		}
	}
	if total == 0 {
		return 1.0
	}
	return round2(float64(shortLived) / float64(total))
}

// LongLivedReport lists every cookie with expiry data and counts the long-lived ones.
func LongLivedReport(cookies []Cookie, now time.Time) ([]ExpiryDetail, int) {
	details := make([]ExpiryDetail, 0, len(cookies))
	longLived := 0
	for _, c := range cookies {
		if !c.HasExpiry {
			continue
		}
		days, expiry := Lifespan(c.Expires, now)
		isLong := days > LongLivedThresholdDays
		if isLong {
			longLived++
		}
		details = append(details, ExpiryDetail{
			Name:         c.Name,
			ExpiryDate:   expiry.Format(expiryLayout),
			LifespanDays: round2(days),
			LongLived:    isLong,
		})
	}
	return details, longLived
}

// DomainScore is the fraction of cookies whose domain contains the first-party host.
func DomainScore(cookies []Cookie, firstParty string) float64 {
	if len(cookies) == 0 {
		return 1.0
	}
	firstParty = strings.ToLower(strings.TrimSpace(firstParty))
	matched := 0
	for _, c := range cookies {
		if strings.Contains(strings.ToLower(c.Domain), firstParty) {
			matched++
		}
	}
	return round2(float64(matched) / float64(len(cookies)))
}
