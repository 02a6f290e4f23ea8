package formula

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ValidationResult is the outcome of validating user-authored math markup.
// Security failures never carry a sanitized result.
type ValidationResult struct {
	IsValid   bool     `json:"is_valid"`
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
	Sanitized string   `json:"sanitized_markup"`
}

// MathKind distinguishes inline and display math blocks.
type MathKind string

const (
	MathInline  MathKind = "inline"
	MathDisplay MathKind = "display"
)

// MathBlock is one extracted math region of the markup.
type MathBlock struct {
	Kind    MathKind `json:"type"`
	Content string   `json:"content"`
	Start   int      `json:"start"`
	End     int      `json:"end"`
}

// deniedCommands block file inclusion, shell escape, category-code
// manipulation and macro definition. Any hit is a hard security failure.
var deniedCommands = []string{
	"input", "include", "InputIfFileExists", "openin", "openout",
	"read", "write", "write18", "immediate", "special",
	"catcode", "def", "edef", "gdef", "xdef", "let", "futurelet",
	"newcommand", "renewcommand", "providecommand", "DeclareRobustCommand",
	"csname", "endcsname", "expandafter", "directlua", "scantokens",
	"usepackage", "documentclass", "RequirePackage",
}

// allowedCommands is the known-safe math vocabulary. Commands outside it are
// reported as warnings, never failures.
var allowedCommands = map[string]bool{
	"frac": true, "dfrac": true, "tfrac": true, "sqrt": true, "over": true,
	"sum": true, "prod": true, "int": true, "oint": true, "iint": true,
	"lim": true, "limsup": true, "liminf": true, "sup": true, "inf": true,
	"min": true, "max": true, "arg": true, "det": true, "dim": true,
	"sin": true, "cos": true, "tan": true, "cot": true, "sec": true,
	"csc": true, "arcsin": true, "arccos": true, "arctan": true,
	"sinh": true, "cosh": true, "tanh": true, "log": true, "ln": true,
	"lg": true, "exp": true, "mod": true, "bmod": true, "pmod": true,
	"alpha": true, "beta": true, "gamma": true, "delta": true,
	"epsilon": true, "varepsilon": true, "zeta": true, "eta": true,
	"theta": true, "vartheta": true, "iota": true, "kappa": true,
	"lambda": true, "mu": true, "nu": true, "xi": true, "pi": true,
	"rho": true, "sigma": true, "tau": true, "upsilon": true, "phi": true,
	"varphi": true, "chi": true, "psi": true, "omega": true,
	"Gamma": true, "Delta": true, "Theta": true, "Lambda": true,
	"Xi": true, "Pi": true, "Sigma": true, "Upsilon": true, "Phi": true,
	"Psi": true, "Omega": true,
	"leq": true, "geq": true, "neq": true, "le": true, "ge": true,
	"ne": true, "ll": true, "gg": true, "sim": true, "simeq": true,
	"approx": true, "equiv": true, "cong": true, "propto": true,
	"subset": true, "supset": true, "subseteq": true, "supseteq": true,
	"in": true, "notin": true, "ni": true, "cup": true, "cap": true,
	"setminus": true, "emptyset": true, "varnothing": true,
	"times": true, "div": true, "cdot": true, "pm": true, "mp": true,
	"ast": true, "star": true, "circ": true, "bullet": true, "oplus": true,
	"ominus": true, "otimes": true, "wedge": true, "vee": true,
	"forall": true, "exists": true, "nexists": true, "neg": true,
	"implies": true, "iff": true, "to": true, "gets": true,
	"mapsto": true, "rightarrow": true, "leftarrow": true,
	"Rightarrow": true, "Leftarrow": true, "Leftrightarrow": true,
	"leftrightarrow": true, "uparrow": true, "downarrow": true,
	"infty": true, "partial": true, "nabla": true, "hbar": true,
	"ell": true, "Re": true, "Im": true, "aleph": true, "wp": true,
	"prime": true, "angle": true, "triangle": true, "perp": true,
	"parallel": true, "dots": true, "cdots": true, "ldots": true,
	"vdots": true, "ddots": true,
	"hat": true, "bar": true, "vec": true, "dot": true, "ddot": true,
	"tilde": true, "widehat": true, "widetilde": true, "overline": true,
	"underline": true, "overbrace": true, "underbrace": true,
	"left": true, "right": true, "big": true, "Big": true, "bigg": true,
	"Bigg": true, "langle": true, "rangle": true, "lfloor": true,
	"rfloor": true, "lceil": true, "rceil": true, "vert": true, "Vert": true,
	"text": true, "mathrm": true, "mathbf": true, "mathit": true,
	"mathsf": true, "mathcal": true, "mathbb": true, "mathfrak": true,
	"operatorname": true, "textstyle": true, "displaystyle": true,
	"scriptstyle": true, "binom": true, "choose": true, "atop": true,
	"stackrel": true, "overset": true, "underset": true, "substack": true,
	"quad": true, "qquad": true, "hspace": true, "vspace": true, "phantom": true,
	"begin": true, "end": true, "label": true, "tag": true, "notag": true,
	"nonumber": true, "\\": true,
}

// displayEnvironments are named environments treated as display math.
var displayEnvironments = map[string]bool{
	"equation": true, "align": true, "gather": true, "multline": true,
	"split": true,
}

var (
	commandRe     = regexp.MustCompile(`\\([a-zA-Z]+\*?)`)
	beginRe       = regexp.MustCompile(`\\begin\{([a-zA-Z]+\*?)\}`)
	endRe         = regexp.MustCompile(`\\end\{([a-zA-Z]+\*?)\}`)
	commentRe     = regexp.MustCompile(`(^|[^\\])%[^\n]*`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	displayMathRe = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
	bracketMathRe = regexp.MustCompile(`(?s)\\\[(.+?)\\\]`)
	parenMathRe   = regexp.MustCompile(`(?s)\\\((.+?)\\\)`)
	inlineMathRe  = regexp.MustCompile(`(?s)\$([^$]+?)\$`)
	envMathRe     = regexp.MustCompile(`(?s)\\begin\{(equation|align|gather|multline|split)\*?\}(.+?)\\end\{(?:equation|align|gather|multline|split)\*?\}`)
)

var deniedRe = buildDeniedRe()

func buildDeniedRe() *regexp.Regexp {
	escaped := make([]string, len(deniedCommands))
	for i, cmd := range deniedCommands {
		escaped[i] = regexp.QuoteMeta(cmd)
	}
	return regexp.MustCompile(`\\(` + strings.Join(escaped, "|") + `)\b`)
}

// Validator checks and sanitizes LaTeX-style math markup before rendering.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate runs the check pipeline in order: empty input, deny-list scan,
// balance checks, allow-list scan. Security failures short-circuit and never
// produce a sanitized result; everything else still gets sanitized output.
func (v *Validator) Validate(markup string) ValidationResult {
	result := ValidationResult{Errors: []string{}, Warnings: []string{}}

	if strings.TrimSpace(markup) == "" {
		result.Errors = append(result.Errors, "markup is empty")
		return result
	}

	if violations := v.securityViolations(markup); len(violations) > 0 {
		result.Errors = append(result.Errors, violations...)
		return result
	}

	result.Errors = append(result.Errors, v.balanceErrors(markup)...)
	result.Warnings = append(result.Warnings, v.vocabularyWarnings(markup)...)
	result.Sanitized = v.sanitize(markup)
	result.IsValid = len(result.Errors) == 0
	return result
}

func (v *Validator) securityViolations(markup string) []string {
	var violations []string
	seen := map[string]bool{}
	for _, m := range deniedRe.FindAllStringSubmatch(markup, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			violations = append(violations, fmt.Sprintf("forbidden command \\%s", m[1]))
		}
	}
	return violations
}

func (v *Validator) balanceErrors(markup string) []string {
	var errs []string

	// Math delimiters. Double dollars are paired first, then what is left
	// over must pair up as inline delimiters.
	stripped := stripEscaped(markup)
	doubles := strings.Count(stripped, "$$")
	if doubles%2 != 0 {
		errs = append(errs, "unbalanced display math delimiters ($$)")
	}
	singles := strings.Count(stripped, "$") - doubles*2
	if singles%2 != 0 {
		errs = append(errs, "unbalanced inline math delimiters ($)")
	}
	if strings.Count(markup, `\[`) != strings.Count(markup, `\]`) {
		errs = append(errs, `unbalanced bracket display delimiters (\[ \])`)
	}
	if strings.Count(markup, `\(`) != strings.Count(markup, `\)`) {
		errs = append(errs, `unbalanced inline delimiters (\( \))`)
	}

	// Braces, stack based, ignoring escaped \{ \}.
	depth := 0
	balanced := true
	for _, r := range stripped {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				balanced = false
			}
		}
	}
	if depth != 0 || !balanced {
		errs = append(errs, "unbalanced braces")
	}

	// Environments must close in document order with matching names.
	type envUse struct {
		name  string
		start int
		isEnd bool
	}
	var uses []envUse
	for _, m := range beginRe.FindAllStringSubmatchIndex(markup, -1) {
		uses = append(uses, envUse{name: markup[m[2]:m[3]], start: m[0]})
	}
	for _, m := range endRe.FindAllStringSubmatchIndex(markup, -1) {
		uses = append(uses, envUse{name: markup[m[2]:m[3]], start: m[0], isEnd: true})
	}
	sort.Slice(uses, func(i, j int) bool { return uses[i].start < uses[j].start })

	var stack []string
	for _, u := range uses {
		if !u.isEnd {
			stack = append(stack, u.name)
			continue
		}
		if len(stack) == 0 {
			errs = append(errs, fmt.Sprintf("\\end{%s} without matching \\begin", u.name))
			continue
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top != u.name {
			errs = append(errs, fmt.Sprintf("environment mismatch: \\begin{%s} closed by \\end{%s}", top, u.name))
		}
	}
	for _, open := range stack {
		errs = append(errs, fmt.Sprintf("\\begin{%s} is never closed", open))
	}

	return errs
}

func (v *Validator) vocabularyWarnings(markup string) []string {
	var warnings []string
	seen := map[string]bool{}
	for _, m := range commandRe.FindAllStringSubmatch(markup, -1) {
		name := m[1]
		base := strings.TrimSuffix(name, "*")
		if allowedCommands[name] || allowedCommands[base] {
			continue
		}
		if !seen[name] {
			seen[name] = true
			warnings = append(warnings, fmt.Sprintf("unknown command \\%s", name))
		}
	}
	return warnings
}

// sanitize strips comments, collapses whitespace and redundantly removes any
// deny-listed tokens that slipped through.
func (v *Validator) sanitize(markup string) string {
	out := commentRe.ReplaceAllString(markup, "$1")
	out = deniedRe.ReplaceAllString(out, "")
	out = whitespaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// stripEscaped blanks out escaped characters so counting loops do not see
// literal \$, \{, \}.
func stripEscaped(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			b.WriteString("  ")
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// ExtractMathContent returns the ordered, non-overlapping math regions of
// the markup. Named display environments count as display blocks.
func (v *Validator) ExtractMathContent(markup string) []MathBlock {
	var blocks []MathBlock
	var taken []MathBlock

	overlaps := func(start, end int) bool {
		for _, t := range taken {
			if start < t.End && end > t.Start {
				return true
			}
		}
		return false
	}
	add := func(kind MathKind, content string, start, end int) {
		if overlaps(start, end) {
			return
		}
		block := MathBlock{Kind: kind, Content: strings.TrimSpace(content), Start: start, End: end}
		blocks = append(blocks, block)
		taken = append(taken, block)
	}

	// Priority order: environments, $$, \[ \], then inline forms. Later
	// passes skip anything already claimed.
	for _, m := range envMathRe.FindAllStringSubmatchIndex(markup, -1) {
		add(MathDisplay, markup[m[4]:m[5]], m[0], m[1])
	}
	for _, m := range displayMathRe.FindAllStringSubmatchIndex(markup, -1) {
		add(MathDisplay, markup[m[2]:m[3]], m[0], m[1])
	}
	for _, m := range bracketMathRe.FindAllStringSubmatchIndex(markup, -1) {
		add(MathDisplay, markup[m[2]:m[3]], m[0], m[1])
	}
	for _, m := range inlineMathRe.FindAllStringSubmatchIndex(markup, -1) {
		add(MathInline, markup[m[2]:m[3]], m[0], m[1])
	}
	for _, m := range parenMathRe.FindAllStringSubmatchIndex(markup, -1) {
		add(MathInline, markup[m[2]:m[3]], m[0], m[1])
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })
	return blocks
}

var bareGreekRe = regexp.MustCompile(`(^|[^\\a-zA-Z])(alpha|beta|gamma|delta|theta|lambda|sigma|omega|pi)([^a-zA-Z]|$)`)

// operatorHints maps plain-text operators to their markup equivalents.
var operatorHints = []struct {
	literal string
	command string
}{
	{"<=", `\leq`},
	{">=", `\geq`},
	{"!=", `\neq`},
	{"->", `\to`},
}

// SuggestCorrections returns advisory hints for common mistakes. It never
// blocks validation.
func (v *Validator) SuggestCorrections(markup string) []string {
	var hints []string
	seen := map[string]bool{}

	for _, m := range bareGreekRe.FindAllStringSubmatch(markup, -1) {
		word := m[2]
		if !seen[word] {
			seen[word] = true
			hints = append(hints, fmt.Sprintf("use \\%s instead of the bare word %q", word, word))
		}
	}
	for _, h := range operatorHints {
		if strings.Contains(markup, h.literal) {
			hints = append(hints, fmt.Sprintf("use %s instead of %q", h.command, h.literal))
		}
	}
	return hints
}
