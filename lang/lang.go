// Package lang holds the small English-rendering helpers used when turning
// game events into text.
package lang

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

var pluralizeClient = pluralizer.NewClient()

func Singular(word string) string {
	return pluralizeClient.Singular(word)
}

func Plural(word string) string {
	return pluralizeClient.Plural(word)
}

func Capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

var (
	// Words where spelling and sound disagree for article selection.
	anExceptions = []string{"hour", "honest", "heir", "honor", "honour"}
	aExceptions  = []string{"uni", "use", "one", "once", "eu", "ewe"}
)

// Article returns "a" or "an" for word, by sound rather than spelling where
// the two disagree.
func Article(word string) string {
	w := strings.ToLower(word)
	if w == "" {
		return "a"
	}
	for _, prefix := range anExceptions {
		if strings.HasPrefix(w, prefix) {
			return "an"
		}
	}
	for _, prefix := range aExceptions {
		if strings.HasPrefix(w, prefix) {
			return "a"
		}
	}
	if w[0] == '8' {
		return "an"
	}
	if strings.ContainsRune("aeiou", rune(w[0])) {
		return "an"
	}
	return "a"
}

// Indef prefixes word with its indefinite article.
func Indef(word string) string {
	return fmt.Sprintf("%s %s", Article(word), word)
}

var smallCounts = map[int]string{
	2: "two",
	3: "three",
}

// Card renders a counted noun: "no swords", "a sword", "two swords",
// "4 swords".
func Card(count int, word string) string {
	switch {
	case count == 0:
		return fmt.Sprintf("no %s", Plural(word))
	case count == 1:
		return Indef(word)
	default:
		if name, found := smallCounts[count]; found {
			return fmt.Sprintf("%s %s", name, Plural(word))
		}
		return fmt.Sprintf("%d %s", count, Plural(word))
	}
}

// ThirdPersonSingular conjugates a verb for a third-person subject:
// "stab" -> "stabs", "slash" -> "slashes", "carry" -> "carries".
func ThirdPersonSingular(verb string) string {
	if verb == "" {
		return ""
	}
	switch verb {
	case "go":
		return "goes"
	case "do":
		return "does"
	case "have":
		return "has"
	}
	for _, suffix := range []string{"s", "sh", "ch", "x", "z"} {
		if strings.HasSuffix(verb, suffix) {
			return verb + "es"
		}
	}
	if strings.HasSuffix(verb, "y") && len(verb) > 1 &&
		!strings.ContainsRune("aeiou", rune(verb[len(verb)-2])) {
		return verb[:len(verb)-1] + "ies"
	}
	return verb + "s"
}

// Possessive renders a name in possessive form, dropping the extra s for
// names already ending in one.
func Possessive(name string) string {
	if name == "" {
		return ""
	}
	if strings.HasSuffix(strings.ToLower(name), "s") {
		return name + "'"
	}
	return name + "'s"
}

type Tense int

const (
	NoTense Tense = iota
	Present
	Past
)

const (
	DefaultPattern   = "%s"
	DefaultSeparator = ","
	DefaultOperator  = "and"
)

// Enumerator renders a list of elements as English prose:
// "a, b, and c" / "a and b" / "a or b", optionally suffixed with a tensed
// copula ("... are", "... was").
type Enumerator struct {
	Pattern   string
	Separator string
	Operator  string
	Tense     Tense
}

func (e Enumerator) Do(elements ...string) string {
	pattern, separator, operator := DefaultPattern, DefaultSeparator, DefaultOperator
	if e.Pattern != "" {
		pattern = e.Pattern
	}
	if e.Separator != "" {
		separator = e.Separator
	}
	if e.Operator != "" {
		operator = e.Operator
	}
	formatted := make([]string, len(elements))
	for i, element := range elements {
		formatted[i] = fmt.Sprintf(pattern, element)
	}
	res := &bytes.Buffer{}
	switch len(formatted) {
	case 0:
	case 1:
		fmt.Fprint(res, formatted[0])
	case 2:
		fmt.Fprintf(res, "%s %s %s", formatted[0], operator, formatted[1])
	default:
		fmt.Fprintf(res, "%s%s %s %s",
			strings.Join(formatted[:len(formatted)-1], separator+" "),
			separator, operator, formatted[len(formatted)-1])
	}
	switch e.Tense {
	case Present:
		if len(formatted) == 1 {
			fmt.Fprint(res, " is")
		} else if len(formatted) > 1 {
			fmt.Fprint(res, " are")
		}
	case Past:
		if len(formatted) == 1 {
			fmt.Fprint(res, " was")
		} else if len(formatted) > 1 {
			fmt.Fprint(res, " were")
		}
	}
	return res.String()
}
