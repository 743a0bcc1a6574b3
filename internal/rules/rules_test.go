package rules

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rule(id string, prio int, pattern string, kind PatternKind, field TargetField) Rule {
	return Rule{
		ID: id, Name: id, Pattern: pattern, Kind: kind, Field: field,
		CategoryID: "cat-" + id, CategoryName: "Category " + id,
		Priority: prio, Enabled: true,
	}
}

func TestMatchFirstByPriorityRegardlessOfInputOrder(t *testing.T) {
	t.Parallel()

	r1 := rule("r1", 1, "amazon", KindContains, FieldPayee)
	r2 := rule("r2", 2, "amazon", KindContains, FieldPayee)

	for _, input := range [][]Rule{{r1, r2}, {r2, r1}} {
		set, err := Compile(input)
		require.NoError(t, err)
		got, ok := set.Match("AMAZON MARKETPLACE", "")
		require.True(t, ok)
		require.Equal(t, "r1", got.ID, "lower priority must win regardless of list order")
	}
}

func TestMatchSkipsDisabledRules(t *testing.T) {
	t.Parallel()

	r := rule("r1", 1, "amazon", KindContains, FieldPayee)
	r.Enabled = false
	set, err := Compile([]Rule{r})
	require.NoError(t, err)
	require.Equal(t, 0, set.Len())
	_, ok := set.Match("AMAZON", "")
	require.False(t, ok)
}

func TestContainsIsCaseInsensitiveSubstring(t *testing.T) {
	t.Parallel()

	set, err := Compile([]Rule{rule("r1", 1, "ReWe", KindContains, FieldPayee)})
	require.NoError(t, err)

	_, ok := set.Match("REWE Markt GmbH", "")
	require.True(t, ok)
	_, ok = set.Match("EDEKA", "")
	require.False(t, ok)
}

func TestExactRequiresFullStringEquality(t *testing.T) {
	t.Parallel()

	set, err := Compile([]Rule{rule("r1", 1, "netflix", KindExact, FieldPayee)})
	require.NoError(t, err)

	_, ok := set.Match("NETFLIX", "")
	require.True(t, ok)
	_, ok = set.Match("NETFLIX INTERNATIONAL", "")
	require.False(t, ok, "exact must not match a superstring")
}

func TestRegexIsCaseInsensitiveSearch(t *testing.T) {
	t.Parallel()

	set, err := Compile([]Rule{rule("r1", 1, `^amz.*`, KindRegex, FieldPayee)})
	require.NoError(t, err)

	_, ok := set.Match("AMZ Purchase", "")
	require.True(t, ok)
	_, ok = set.Match("Purchase AMZ", "")
	require.False(t, ok)
}

func TestCombinedMatchesEitherFieldIndependently(t *testing.T) {
	t.Parallel()

	set, err := Compile([]Rule{rule("r1", 1, "miete", KindContains, FieldCombined)})
	require.NoError(t, err)

	_, ok := set.Match("MIETE März", "")
	require.True(t, ok, "payee alone must match")
	_, ok = set.Match("Hausverwaltung", "Miete 2026-03")
	require.True(t, ok, "memo alone must match")
	_, ok = set.Match("Hausverwaltung", "Nebenkosten")
	require.False(t, ok)
}

func TestCombinedSubstringEquivalentToConcatenation(t *testing.T) {
	t.Parallel()

	// for substring and exact matching, trying the fields independently is
	// equivalent to matching against a concatenation
	set, err := Compile([]Rule{rule("r1", 1, "spotify", KindContains, FieldCombined)})
	require.NoError(t, err)

	cases := []struct{ payee, memo string }{
		{"SPOTIFY AB", ""},
		{"", "Spotify Premium"},
		{"SPOTIFY", "Spotify Premium"},
	}
	for _, c := range cases {
		_, independent := set.Match(c.payee, c.memo)
		_, concatenated := set.Match(c.payee+" "+c.memo, "")
		require.Equal(t, concatenated, independent, "payee=%q memo=%q", c.payee, c.memo)
	}
}

func TestCombinedRegexDoesNotMatchAcrossFieldBoundary(t *testing.T) {
	t.Parallel()

	set, err := Compile([]Rule{rule("r1", 1, `foo bar`, KindRegex, FieldCombined)})
	require.NoError(t, err)

	_, ok := set.Match("something foo", "bar something")
	require.False(t, ok, "regex must be tried per field, not across the boundary")
}

func TestCompileRejectsMalformedRegex(t *testing.T) {
	t.Parallel()

	_, err := Compile([]Rule{rule("r1", 1, `([unclosed`, KindRegex, FieldPayee)})
	require.Error(t, err)
}

func TestValidatePattern(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidatePattern("amazon", KindContains))
	require.NoError(t, ValidatePattern(`^AMZ.*`, KindRegex))
	require.Error(t, ValidatePattern(`([`, KindRegex))
	require.Error(t, ValidatePattern("  ", KindContains))
	require.Error(t, ValidatePattern("x", PatternKind("glob")))
}

func TestTestPatternSharesBatchSemantics(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pattern string
		kind    PatternKind
		field   TargetField
		payee   string
		memo    string
	}{
		{`^AMZ.*`, KindRegex, FieldPayee, "AMZ Purchase", ""},
		{`^AMZ.*`, KindRegex, FieldPayee, "Purchase", ""},
		{"amazon", KindContains, FieldCombined, "AMAZON MARKETPLACE", ""},
		{"netflix", KindExact, FieldPayee, "NETFLIX", "irrelevant"},
		{"netflix", KindExact, FieldPayee, "NETFLIX INC", ""},
	}
	for _, c := range cases {
		preview, err := TestPattern(c.pattern, c.kind, c.field, c.payee, c.memo)
		require.NoError(t, err)

		set, err := Compile([]Rule{rule("r1", 1, c.pattern, c.kind, c.field)})
		require.NoError(t, err)
		_, batch := set.Match(c.payee, c.memo)

		require.Equal(t, batch, preview, "preview and batch disagree for %+v", c)
	}
}

func TestTestPatternRejectsBadRegex(t *testing.T) {
	t.Parallel()

	_, err := TestPattern(`([`, KindRegex, FieldPayee, "x", "")
	require.Error(t, err)
}
