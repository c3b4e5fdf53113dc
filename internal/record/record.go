// Package record defines the canonical applicant schema and the
// normalization rules that map raw scraped rows onto it.
package record

import (
	"strconv"
	"strings"
	"time"
)

// Raw is one applicant row as produced by the scrape collaborator. Key
// names vary across scraper generations; normalization resolves them.
type Raw map[string]any

// Record is the normalized applicant row matching the applicants table.
// URL is the natural key; rows without one are never persisted.
type Record struct {
	Program                *string
	Comments               *string
	DateAdded              *time.Time
	URL                    string
	Status                 *string
	Term                   *string
	USOrInternational      *string
	GPA                    *float64
	GRE                    *float64
	GREVerbal              *float64
	GREWriting             *float64
	Degree                 *string
	LLMGeneratedProgram    *string
	LLMGeneratedUniversity *string
}

// AliasRule maps an ordered list of historical source keys onto one
// canonical field. Earlier keys win.
type AliasRule struct {
	Field string
	Keys  []string
}

// AliasRules is the full resolution table, one rule per canonical field.
// The key lists accumulate every name the field has carried across
// scraper generations.
var AliasRules = []AliasRule{
	{Field: "url", Keys: []string{"url", "overview_url", "entry_url", "page_url"}},
	{Field: "program", Keys: []string{"program_name", "program", "program_name_clean", "llm-generated-program", "llm_generated_program"}},
	{Field: "comments", Keys: []string{"comments"}},
	{Field: "date_added", Keys: []string{"date_added"}},
	{Field: "status", Keys: []string{"status", "applicant_status"}},
	{Field: "term", Keys: []string{"term", "semester_year_start", "start_term"}},
	{Field: "us_or_international", Keys: []string{"us_or_international", "international_or_american", "citizenship"}},
	{Field: "gpa", Keys: []string{"gpa"}},
	{Field: "gre", Keys: []string{"gre", "gre_score", "gre_general"}},
	{Field: "gre_v", Keys: []string{"gre_v", "gre_v_score", "gre_verbal"}},
	{Field: "gre_aw", Keys: []string{"gre_aw"}},
	{Field: "degree", Keys: []string{"degree", "masters_or_phd", "degree_level"}},
	{Field: "llm_generated_program", Keys: []string{"llm_generated_program", "program_name_clean", "llm-generated-program"}},
	{Field: "llm_generated_university", Keys: []string{"llm_generated_university", "university_clean", "llm-generated-university"}},
}

var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string][]string {
	idx := make(map[string][]string, len(AliasRules))
	for _, rule := range AliasRules {
		idx[rule.Field] = rule.Keys
	}
	return idx
}

// Resolve returns the first non-empty value among the aliases registered
// for the canonical field, or nil if none is set.
func Resolve(raw Raw, field string) any {
	for _, key := range aliasIndex[field] {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

// Normalize maps a raw row to a Record. The second return is false when
// no url alias resolves; such rows must be dropped, never stored.
func Normalize(raw Raw) (Record, bool) {
	url := cleanText(Resolve(raw, "url"))
	if url == nil {
		return Record{}, false
	}
	return Record{
		Program:                cleanText(Resolve(raw, "program")),
		Comments:               cleanText(Resolve(raw, "comments")),
		DateAdded:              cleanDate(Resolve(raw, "date_added")),
		URL:                    *url,
		Status:                 cleanText(Resolve(raw, "status")),
		Term:                   cleanText(Resolve(raw, "term")),
		USOrInternational:      cleanText(Resolve(raw, "us_or_international")),
		GPA:                    cleanFloat(Resolve(raw, "gpa")),
		GRE:                    cleanFloat(Resolve(raw, "gre")),
		GREVerbal:              cleanFloat(Resolve(raw, "gre_v")),
		GREWriting:             cleanFloat(Resolve(raw, "gre_aw")),
		Degree:                 cleanText(Resolve(raw, "degree")),
		LLMGeneratedProgram:    cleanText(Resolve(raw, "llm_generated_program")),
		LLMGeneratedUniversity: cleanText(Resolve(raw, "llm_generated_university")),
	}, true
}

// SortKey orders rows for a batch: the raw date_added text when present,
// else the url, else empty. Text comparison matches the TEXT watermark.
func SortKey(raw Raw) string {
	if v := cleanText(raw["date_added"]); v != nil {
		return *v
	}
	if v := cleanText(Resolve(raw, "url")); v != nil {
		return *v
	}
	return ""
}

// cleanText trims a value into a non-empty string or nil.
func cleanText(v any) *string {
	if v == nil {
		return nil
	}
	var text string
	switch t := v.(type) {
	case string:
		text = t
	case float64:
		text = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &text
}

// cleanFloat coerces numeric-looking input into a float. Anything that
// does not parse yields nil rather than an error; scraped numeric fields
// arrive as strings, numbers, or garbage.
func cleanFloat(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case string:
		s := strings.TrimSpace(t)
		if s == "" || s == "null" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// dateFormats are the layouts the scrape pipeline has emitted over time.
var dateFormats = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"01/02/2006",
}

// cleanDate parses date_added text into a date, trying each known layout.
// Unparseable input yields nil.
func cleanDate(v any) *time.Time {
	s := cleanText(v)
	if s == nil {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	return nil
}
