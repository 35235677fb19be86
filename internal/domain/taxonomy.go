package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is an answer language supported by the study assistant.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageHindi   Language = "hindi"
)

// Languages lists every supported language.
var Languages = []Language{LanguageEnglish, LanguageHindi}

var languageMatcher = language.NewMatcher([]language.Tag{language.English, language.Hindi})

// ParseLanguage accepts a language name ("hindi") or a BCP 47 tag ("hi",
// "en-IN") and returns the supported Language it denotes. ok is false for
// anything that does not confidently match a supported language.
func ParseLanguage(s string) (Language, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch Language(v) {
	case LanguageEnglish, LanguageHindi:
		return Language(v), true
	case "":
		return "", false
	}
	tag, err := language.Parse(v)
	if err != nil {
		return "", false
	}
	_, idx, conf := languageMatcher.Match(tag)
	if conf < language.High {
		return "", false
	}
	if idx == 1 {
		return LanguageHindi, true
	}
	return LanguageEnglish, true
}

// Subject is a client-facing subject in the curriculum taxonomy.
type Subject string

const (
	SubjectScience       Subject = "science"
	SubjectMathematics   Subject = "mathematics"
	SubjectSocialScience Subject = "social_science"
	SubjectEnglish       Subject = "english"
	SubjectHindi         Subject = "hindi"
)

// Subjects lists every subject a conversation may be scoped to.
var Subjects = []Subject{SubjectScience, SubjectMathematics, SubjectSocialScience, SubjectEnglish, SubjectHindi}

// ParseSubject matches s case-insensitively against the known subjects.
// Spaces and hyphens are treated as underscores ("Social Science").
func ParseSubject(s string) (Subject, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer(" ", "_", "-", "_").Replace(v)
	for _, sub := range Subjects {
		if Subject(v) == sub {
			return sub, true
		}
	}
	return "", false
}

// Grade bounds for conversations.
const (
	MinGrade = 5
	MaxGrade = 10
)
