// Package language holds the fixed set of languages offered for capture and
// translation.
package language

import "fmt"

// Code is a BCP-47 style speech language code such as "en-US".
type Code string

const (
	English    Code = "en-US"
	Indonesian Code = "id-ID"
	Spanish    Code = "es-ES"
	French     Code = "fr-FR"
)

// Language pairs a capture code with the human-readable name sent upstream.
type Language struct {
	Code  Code
	Label string
}

// Supported lists the selectable languages in display order.
var Supported = []Language{
	{Code: English, Label: "English"},
	{Code: Indonesian, Label: "Indonesian"},
	{Code: Spanish, Label: "Spanish"},
	{Code: French, Label: "French"},
}

// Name returns the label for code and whether it is supported.
func Name(code Code) (string, bool) {
	for _, l := range Supported {
		if l.Code == code {
			return l.Label, true
		}
	}
	return "", false
}

// NameOr returns the label for code, or fallback when code is unknown.
func NameOr(code Code, fallback string) string {
	if name, ok := Name(code); ok {
		return name
	}
	return fallback
}

// Parse validates a code against the supported set.
func Parse(s string) (Code, error) {
	code := Code(s)
	if _, ok := Name(code); !ok {
		return "", fmt.Errorf("unsupported language code %q", s)
	}
	return code, nil
}

// Pair is the source/target selection of a recording session.
type Pair struct {
	Source Code
	Target Code
}

// SourceName returns the upstream name of the source language.
// Unknown codes fall back to English.
func (p Pair) SourceName() string {
	return NameOr(p.Source, "English")
}

// TargetName returns the upstream name of the target language.
// Unknown codes fall back to Indonesian.
func (p Pair) TargetName() string {
	return NameOr(p.Target, "Indonesian")
}

// DefaultPair is English to Indonesian.
func DefaultPair() Pair {
	return Pair{Source: English, Target: Indonesian}
}
