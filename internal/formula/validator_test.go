package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmptyMarkup(t *testing.T) {
	v := NewValidator()

	result := v.Validate("   ")
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors[0], "empty")
	assert.Empty(t, result.Sanitized)
}

func TestValidateBlocksDeniedCommands(t *testing.T) {
	v := NewValidator()

	cases := []string{
		`\input{/etc/passwd}`,
		`\write18{rm -rf /}`,
		`\def\x{y}`,
		`\catcode`,
		`$x$ + \newcommand{\evil}{bad}`,
		`\csname input\endcsname{x}`,
	}
	for _, markup := range cases {
		result := v.Validate(markup)
		assert.False(t, result.IsValid, "expected rejection for %q", markup)
		assert.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0], "forbidden command")
		// Security failures never leak a sanitized or partial result.
		assert.Empty(t, result.Sanitized)
	}
}

func TestValidateAcceptsSafeFormula(t *testing.T) {
	v := NewValidator()

	result := v.Validate(`$\frac{a}{b} + \sqrt{x^2 + y^2} \leq \pi$`)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.Sanitized)
}

func TestValidateBalanceChecks(t *testing.T) {
	v := NewValidator()

	cases := map[string]string{
		`$\frac{a}{b}`:                       "inline math",
		`$$x = 1`:                            "display",
		`\frac{a}{b`:                         "braces",
		`$a}$ {`:                             "braces",
		`\begin{align} x \end{equation}`:     "mismatch",
		`\begin{equation} x`:                 "never closed",
		`\end{align}`:                        "without matching",
		`\[ x = 1`:                           "bracket",
	}
	for markup := range cases {
		result := v.Validate(markup)
		assert.False(t, result.IsValid, "expected rejection for %q", markup)
	}
}

func TestValidateUnknownCommandsWarnOnly(t *testing.T) {
	v := NewValidator()

	result := v.Validate(`$\frobnicate{x}$`)
	assert.True(t, result.IsValid)
	assert.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], `\frobnicate`)
}

func TestSanitizeStripsCommentsAndWhitespace(t *testing.T) {
	v := NewValidator()

	result := v.Validate("$x + y$  % trailing comment\n  $a$")
	assert.True(t, result.IsValid)
	assert.NotContains(t, result.Sanitized, "comment")
	assert.NotContains(t, result.Sanitized, "\n")
	assert.NotContains(t, result.Sanitized, "  ")
}

func TestExtractMathContent(t *testing.T) {
	v := NewValidator()

	markup := `intro $a+b$ middle $$c=d$$ and \begin{align} e=f \end{align} tail \(g\)`
	blocks := v.ExtractMathContent(markup)

	assert.Len(t, blocks, 4)
	assert.Equal(t, MathInline, blocks[0].Kind)
	assert.Equal(t, "a+b", blocks[0].Content)
	assert.Equal(t, MathDisplay, blocks[1].Kind)
	assert.Equal(t, "c=d", blocks[1].Content)
	assert.Equal(t, MathDisplay, blocks[2].Kind)
	assert.Equal(t, "e=f", blocks[2].Content)
	assert.Equal(t, MathInline, blocks[3].Kind)
	assert.Equal(t, "g", blocks[3].Content)

	// Ordered and non-overlapping.
	for i := 1; i < len(blocks); i++ {
		assert.GreaterOrEqual(t, blocks[i].Start, blocks[i-1].End)
	}
}

func TestExtractMathContentEnvironmentClaimsPriority(t *testing.T) {
	v := NewValidator()

	blocks := v.ExtractMathContent(`\begin{equation} x = y \end{equation}`)
	assert.Len(t, blocks, 1)
	assert.Equal(t, MathDisplay, blocks[0].Kind)
	assert.Equal(t, "x = y", blocks[0].Content)
}

func TestSuggestCorrections(t *testing.T) {
	v := NewValidator()

	hints := v.SuggestCorrections("alpha <= beta")
	assert.NotEmpty(t, hints)

	joined := ""
	for _, h := range hints {
		joined += h + ";"
	}
	assert.Contains(t, joined, `\alpha`)
	assert.Contains(t, joined, `\leq`)

	// Advisory only: the same markup still validates.
	result := v.Validate("$alpha <= beta$")
	assert.True(t, result.IsValid)
}
