package ingest

import (
	"fmt"
	"net/url"
	"time"
)

const (
	minSaneYear        = 2000
	maxSaneYear        = 2100
	maxDurationSeconds = 24 * 60 * 60
)

// ValidateDraft runs the structural and semantic checks a draft must pass
// before any storage access. It evaluates every rule so diagnostics carry the
// complete failure list, but the returned error names the first failing field.
// Pure: no I/O.
func ValidateDraft(d ItemDraft, raw any) error {
	var failures []RuleFailure

	mandatory := []struct {
		field string
		value string
	}{
		{"provider", string(d.Provider)},
		{"providerItemId", d.ProviderItemID},
		{"title", d.Title},
		{"canonicalUrl", d.CanonicalURL},
		{"contentType", string(d.ContentType)},
	}
	for _, m := range mandatory {
		if m.value == "" {
			failures = append(failures, RuleFailure{
				Field:   m.field,
				Value:   m.value,
				Message: "required field is empty",
			})
		}
	}

	if d.CanonicalURL != "" {
		u, err := url.Parse(d.CanonicalURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			failures = append(failures, RuleFailure{
				Field:   "canonicalUrl",
				Value:   d.CanonicalURL,
				Message: "url scheme must be http or https",
			})
		}
	}

	if !saneMillis(d.PublishedAt) {
		failures = append(failures, RuleFailure{
			Field:   "publishedAt",
			Value:   d.PublishedAt,
			Message: fmt.Sprintf("timestamp outside %d-%d", minSaneYear, maxSaneYear),
		})
	}
	if !saneMillis(d.CreatedAt) {
		failures = append(failures, RuleFailure{
			Field:   "createdAt",
			Value:   d.CreatedAt,
			Message: fmt.Sprintf("timestamp outside %d-%d", minSaneYear, maxSaneYear),
		})
	}

	if d.DurationSeconds != nil {
		if *d.DurationSeconds < 0 || *d.DurationSeconds > maxDurationSeconds {
			failures = append(failures, RuleFailure{
				Field:   "durationSeconds",
				Value:   *d.DurationSeconds,
				Message: "duration must be between 0 and 24 hours",
			})
		}
	}

	if len(failures) == 0 {
		return nil
	}
	return &ValidationError{
		Field:    failures[0].Field,
		Value:    failures[0].Value,
		Failures: failures,
		Raw:      raw,
	}
}

func saneMillis(ms int64) bool {
	year := time.UnixMilli(ms).UTC().Year()
	return year >= minSaneYear && year <= maxSaneYear
}
