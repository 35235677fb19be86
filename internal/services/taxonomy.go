package services

import (
	"strings"

	"github.com/tbourn/go-study-backend/internal/domain"
)

// upstreamSubjects maps client-facing subject names to the vocabulary of the
// inference service. Keys are lower case.
var upstreamSubjects = map[string]string{
	"social_science": "social_studies",
	"social science": "social_studies",
	"social-science": "social_studies",
	"social_studies": "social_studies",
	"sst":            "social_studies",
	"civics":         "social_studies",
	"history":        "social_studies",
	"geography":      "social_studies",
	"maths":          "mathematics",
	"math":           "mathematics",
}

// UpstreamSubject translates a subject to the inference service term. The
// lookup is case-insensitive; unknown values are returned unchanged, and a
// value already in upstream form maps to itself.
func UpstreamSubject(s string) string {
	if v, ok := upstreamSubjects[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v
	}
	return s
}

// clientSubjectAliases lets clients use common short forms.
var clientSubjectAliases = map[string]domain.Subject{
	"maths":          domain.SubjectMathematics,
	"math":           domain.SubjectMathematics,
	"sst":            domain.SubjectSocialScience,
	"social_studies": domain.SubjectSocialScience,
	"civics":         domain.SubjectSocialScience,
	"history":        domain.SubjectSocialScience,
	"geography":      domain.SubjectSocialScience,
}

// normalizeSubject resolves s to a known subject.
func normalizeSubject(s string) (domain.Subject, bool) {
	if sub, ok := domain.ParseSubject(s); ok {
		return sub, true
	}
	sub, ok := clientSubjectAliases[strings.ToLower(strings.TrimSpace(s))]
	return sub, ok
}

// ResolveLanguage picks the effective language of a query. A stored profile
// preference wins over the language in the request, which wins over def.
func ResolveLanguage(profile, requested, def domain.Language) domain.Language {
	switch {
	case profile != "":
		return profile
	case requested != "":
		return requested
	default:
		return def
	}
}
