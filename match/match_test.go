package match

import (
	"testing"
)

func has(words ...string) TermMatcher {
	set := map[string]bool{}
	for _, w := range words {
		set[w] = true
	}
	return func(literal string) bool {
		return set[literal]
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr    string
		matches []string
		want    bool
	}{
		{"a | b", []string{"a"}, true},
		{"a | b", []string{"b"}, true},
		{"a | b", []string{"c"}, false},
		{"a + b", []string{"a"}, false},
		{"a + b", []string{"a", "b"}, true},
		{"!a", []string{"a"}, false},
		{"!a", []string{"b"}, true},
		// AND binds tighter than OR.
		{"a | b + c", []string{"a"}, true},
		{"a | b + c", []string{"b"}, false},
		{"a | b + c", []string{"b", "c"}, true},
		// Parentheses override precedence.
		{"(a | b) + c", []string{"a"}, false},
		{"(a | b) + c", []string{"a", "c"}, true},
		// Word-form operators.
		{"a or b", []string{"b"}, true},
		{"a and b", []string{"a", "b"}, true},
		{"not a", []string{"a"}, false},
		{"a AND b", []string{"a", "b"}, true},
		// Word-form operators only bind on word boundaries.
		{"organic", []string{"organic"}, true},
		{"candy", []string{"candy"}, true},
		{"nothing here", []string{"nothing here"}, true},
		// Quoted literals swallow operators verbatim.
		{`"a | b"`, []string{"a | b"}, true},
		{`"a | b"`, []string{"a"}, false},
		{`'a + b' | c`, []string{"a + b"}, true},
		{`"don\"t"`, []string{`don"t`}, true},
		// Nested negation.
		{"!!a", []string{"a"}, true},
		{"!(a | b)", []string{"c"}, true},
		{"!(a | b)", []string{"b"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr, has(tt.matches...), false)
			if err != nil {
				t.Fatalf("Evaluate(%q) = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) with %v = %v, want %v", tt.expr, tt.matches, got, tt.want)
			}
		})
	}
}

func TestEvaluateEmptyDefault(t *testing.T) {
	for _, def := range []bool{true, false} {
		for _, expr := range []string{"", "   ", "\t"} {
			got, err := Evaluate(expr, has(), def)
			if err != nil {
				t.Fatalf("Evaluate(%q) = %v", expr, err)
			}
			if got != def {
				t.Errorf("Evaluate(%q, default %v) = %v", expr, def, got)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	valid := []string{
		"",
		"touch altar",
		"touch altar or touch stone",
		"a + (b | c)",
		`"quoted (text"`,
		"!a + !b",
	}
	for _, expr := range valid {
		if err := Validate(expr); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", expr, err)
		}
	}
	invalid := []string{
		"a |",
		"| a",
		"a + ",
		"(a",
		"a)",
		"()",
		"!",
		`"unterminated`,
		"a b | + c",
	}
	for _, expr := range invalid {
		if err := Validate(expr); err == nil {
			t.Errorf("Validate(%q) = nil, want error", expr)
		}
	}
}

func TestFirstLiteral(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"touch altar or touch stone", "touch altar"},
		{"(pull lever | push lever) + standing", "pull lever"},
		{"!hidden", "hidden"},
		{`"a | b" or c`, "a | b"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := FirstLiteral(tt.expr)
		if err != nil {
			t.Fatalf("FirstLiteral(%q) = %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("FirstLiteral(%q) = %q, want %q", tt.expr, got, tt.want)
		}
	}
}

func TestPhrase(t *testing.T) {
	tests := []struct {
		text    string
		literal string
		want    bool
	}{
		{"touch the old stone", "stone", true},
		{"touch the old stone", "ton", false},
		{"touch the old stone", "old stone", true},
		{"touch the old stone", "the new", false},
		{"Touch The Old Stone", "touch the old stone", true},
		{"touch the altar.", "altar", true},
		{"touch the old stone", "", false},
	}
	for _, tt := range tests {
		if got := Phrase(tt.text)(tt.literal); got != tt.want {
			t.Errorf("Phrase(%q)(%q) = %v, want %v", tt.text, tt.literal, got, tt.want)
		}
	}
}

func TestExact(t *testing.T) {
	tests := []struct {
		text    string
		literal string
		want    bool
	}{
		{" Hello  World ", "hello world", true},
		{"hello world", "hello", false},
		{"HELLO\tWORLD", "hello world", true},
		{"hello", "hello world", false},
	}
	for _, tt := range tests {
		if got := Exact(tt.text)(tt.literal); got != tt.want {
			t.Errorf("Exact(%q)(%q) = %v, want %v", tt.text, tt.literal, got, tt.want)
		}
	}
}

func TestEvaluatePhraseIntegration(t *testing.T) {
	got, err := Evaluate("touch altar or touch stone", Phrase("touch stone"), false)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Errorf("expected phrase evaluation to match")
	}
}
