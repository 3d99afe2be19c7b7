package research

import (
	"fmt"
	"strings"
)

// Provider outcome statuses recorded in the trace.
const (
	StatusSuccess        = "success"
	StatusNoContent      = "no_content"
	StatusError          = "error"
	StatusSkipped        = "skipped"
	StatusStopThreshold  = "stop_threshold_reached"
	waterfallTraceSource = "waterfall"
)

// TraceEntry records what one provider did for a lead.
type TraceEntry struct {
	Provider string `json:"provider"`
	Status   string `json:"status"`
	Chars    int    `json:"chars"`
	Detail   string `json:"detail,omitempty"`
}

// Result is the evidence gathered for one lead. It is built fresh per lead
// and never persisted.
type Result struct {
	WebsiteContent string
	SearchResults  string
	PagesFetched   int
	SourceURLs     []string
	Trace          []TraceEntry
	Errors         []string
}

// HasContent reports whether any provider returned usable text.
func (r *Result) HasContent() bool {
	if r == nil {
		return false
	}
	return strings.TrimSpace(r.WebsiteContent) != "" || strings.TrimSpace(r.SearchResults) != ""
}

// Chars is the combined size of the gathered text.
func (r *Result) Chars() int {
	return len(r.WebsiteContent) + len(r.SearchResults)
}

// PromptSection renders the gathered evidence for a research prompt.
func (r *Result) PromptSection() string {
	if !r.HasContent() {
		return "No web research data was available for this lead."
	}

	var parts []string
	if r.WebsiteContent != "" {
		parts = append(parts, "WEBSITE CONTENT:\n"+r.WebsiteContent)
	}
	if r.SearchResults != "" {
		parts = append(parts, "SEARCH RESULTS:\n"+r.SearchResults)
	}
	if len(r.SourceURLs) > 0 {
		lines := make([]string, len(r.SourceURLs))
		for i, u := range r.SourceURLs {
			lines[i] = "- " + u
		}
		parts = append(parts, "SOURCES:\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// TraceSummary renders the trace compactly, e.g. "website:success, brave:skipped".
func (r *Result) TraceSummary() string {
	if r == nil || len(r.Trace) == 0 {
		return ""
	}
	parts := make([]string, len(r.Trace))
	for i, t := range r.Trace {
		parts[i] = fmt.Sprintf("%s:%s", t.Provider, t.Status)
	}
	return strings.Join(parts, ", ")
}

func (r *Result) addSources(urls []string) {
	r.SourceURLs = appendUnique(r.SourceURLs, urls...)
}

// appendUnique appends values not already present, preserving first
// occurrence order. Blank values are dropped.
func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(values))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

// Dedupe returns values without blanks or repeats, in first-occurrence order.
func Dedupe(values []string) []string {
	return appendUnique(nil, values...)
}
