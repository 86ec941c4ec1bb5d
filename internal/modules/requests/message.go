package requests

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aristath/requestmirror/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var requestURLPattern = regexp.MustCompile(`\bhttps://exercism\.org/mentoring/requests/(\w+)\b`)

var titleCaser = cases.Title(language.English)

// Title renders a track name the way threads and messages show it.
func Title(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "-", " "))
}

// FormatMessage renders a request as mirror message text:
//
//	Python: https://exercism.org/mentoring/requests/abc => Two Fer (student, status)
//
// The status is omitted when empty.
func FormatMessage(req domain.SourceRequest) string {
	track := req.TrackTitle
	if track == "" {
		track = req.TrackSlug
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s => %s (%s", Title(track), req.URL, req.ExerciseTitle, req.StudentHandle)
	if req.Status != "" {
		fmt.Fprintf(&b, ", %s", req.Status)
	}
	b.WriteString(")")
	return b.String()
}

// ParseRequestID extracts the request id from message text.
func ParseRequestID(content string) (string, bool) {
	match := requestURLPattern.FindStringSubmatch(content)
	if match == nil {
		return "", false
	}
	return match[1], true
}
