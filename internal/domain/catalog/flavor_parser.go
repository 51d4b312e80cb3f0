// Package catalog parses supplier product names into storefront-ready parts.
package catalog

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ParsedName is the result of splitting a supplier product name
type ParsedName struct {
	// Flavor is nil when the name carries no flavor
	Flavor   *string
	ItemName string
	// Rule names the matcher that produced the result
	Rule string
}

// matcher is one rule of the parser. It reports false to pass the name on to the next rule.
type matcher struct {
	name  string
	match func(name string) (ParsedName, bool)
}

type knownFlavor struct {
	phrase   string
	noFlavor bool
	anywhere *regexp.Regexp
	prefix   *regexp.Regexp
}

var (
	pairPattern      = regexp.MustCompile(`(\p{L}+)\s*([-&,])\s*(\p{L}+)`)
	withPattern      = regexp.MustCompile(`(?i)^(.+?)\s+with\s+(.+)$`)
	dosePattern      = regexp.MustCompile(`(?i)^(.+?)\s+(\d+(?:[.,]\d+)?\s?mg)\s+(.+)$`)
	trailingPattern  = regexp.MustCompile(`^(.+)(?:,|\s-)\s*([^,]+)$`)
	digitPattern     = regexp.MustCompile(`\p{N}`)
	spacePattern     = regexp.MustCompile(`\s+`)
	spaceBeforeComma = regexp.MustCompile(`\s+,`)
	commaRunPattern  = regexp.MustCompile(`,(?:\s*,)+`)
	emptyParens      = regexp.MustCompile(`\(\s*\)`)
	// a hyphen without spaces or an ampersand joins two words into one pair
	pairJoinBefore   = regexp.MustCompile(`\p{L}(?:-|\s*&\s*)$`)
	pairJoinAfter    = regexp.MustCompile(`^(?:-|\s*&\s*)\p{L}`)
)

// FlavorParser splits raw supplier names into a flavor and a cleaned item name.
// Rules are tried in order and the first match wins.
type FlavorParser struct {
	flavors  []knownFlavor
	byFolded map[string]knownFlavor
	fold     cases.Caser
	matchers []matcher
}

// NewFlavorParser builds a parser for the given flavor phrases and no-flavor tokens
func NewFlavorParser(flavors, noFlavor []string) *FlavorParser {
	p := &FlavorParser{
		byFolded: make(map[string]knownFlavor, len(flavors)+len(noFlavor)),
		fold:     cases.Fold(),
	}

	add := func(phrase string, none bool) {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			return
		}
		key := p.foldKey(phrase)
		if _, ok := p.byFolded[key]; ok {
			return
		}
		kf := knownFlavor{
			phrase:   phrase,
			noFlavor: none,
			anywhere: regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + phrasePattern(phrase) + `)(?:[^\p{L}\p{N}]|$)`),
			prefix:   regexp.MustCompile(`(?i)^` + phrasePattern(phrase) + `(?:[^\p{L}\p{N}]|$)`),
		}
		p.byFolded[key] = kf
		p.flavors = append(p.flavors, kf)
	}
	for _, f := range flavors {
		add(f, false)
	}
	for _, f := range noFlavor {
		add(f, true)
	}

	// Longest phrase first so "Salted Caramel" beats "Caramel".
	sort.SliceStable(p.flavors, func(i, j int) bool {
		li, lj := len([]rune(p.flavors[i].phrase)), len([]rune(p.flavors[j].phrase))
		if li != lj {
			return li > lj
		}
		return p.flavors[i].phrase < p.flavors[j].phrase
	})

	p.matchers = []matcher{
		{"known_prefix", p.matchKnownPrefix},
		{"known_flavor", p.matchKnownFlavor},
		{"word_pair", p.matchWordPair},
		{"with_clause", matchWithClause},
		{"dose_tail", matchDoseTail},
		{"trailing_clause", matchTrailingClause},
	}
	return p
}

var defaultParser = NewFlavorParser(KnownFlavors, NoFlavorTokens)

// ExtractFlavor splits a raw supplier name using the built-in flavor list
func ExtractFlavor(rawName string) (*string, string) {
	parsed := defaultParser.Parse(rawName)
	return parsed.Flavor, parsed.ItemName
}

// Parse runs the rules against the raw name
func (p *FlavorParser) Parse(rawName string) ParsedName {
	name := normalize(rawName)
	if name == "" {
		return ParsedName{Rule: "empty"}
	}
	for _, m := range p.matchers {
		if res, ok := m.match(name); ok {
			res.Rule = m.name
			return res
		}
	}
	return ParsedName{ItemName: trimTrailingComma(name), Rule: "none"}
}

// Rule 1: a name that opens with a flavor phrase names a product line, not a flavor.
func (p *FlavorParser) matchKnownPrefix(name string) (ParsedName, bool) {
	for _, kf := range p.flavors {
		if kf.prefix.MatchString(name) {
			return ParsedName{ItemName: trimTrailingComma(name)}, true
		}
	}
	return ParsedName{}, false
}

// Rule 2: first whole-word flavor phrase, skipping matches that describe an oil.
// A phrase glued into a "Chocolate-Mint" or "Cookies&Cream" pair is not a whole
// word; the pair is left to rule 3.
func (p *FlavorParser) matchKnownFlavor(name string) (ParsedName, bool) {
	for _, kf := range p.flavors {
		for _, loc := range kf.anywhere.FindAllStringSubmatchIndex(name, -1) {
			start, end := loc[2], loc[3]
			if followedByOil(name[end:]) || inWordPair(name[:start], name[end:]) {
				continue
			}
			res := ParsedName{ItemName: tidy(name[:start] + " " + name[end:])}
			if !kf.noFlavor {
				res.Flavor = ptr(kf.phrase)
			}
			return res, true
		}
	}
	return ParsedName{}, false
}

// Rule 3: "Cookies&Cream" or "Peanut-Butter" style pairs that spell a known phrase.
func (p *FlavorParser) matchWordPair(name string) (ParsedName, bool) {
	for _, loc := range pairPattern.FindAllStringSubmatchIndex(name, -1) {
		first, second := name[loc[2]:loc[3]], name[loc[6]:loc[7]]
		for _, joined := range []string{first + " " + second, first + " & " + second, first + " and " + second} {
			kf, ok := p.byFolded[p.foldKey(joined)]
			if !ok {
				continue
			}
			res := ParsedName{ItemName: tidy(name[:loc[0]] + " " + name[loc[1]:])}
			if !kf.noFlavor {
				res.Flavor = ptr(kf.phrase)
			}
			return res, true
		}
	}
	return ParsedName{}, false
}

// Rule 4: "<name> with <tail>" where the tail has no digits.
func matchWithClause(name string) (ParsedName, bool) {
	m := withPattern.FindStringSubmatch(name)
	if m == nil {
		return ParsedName{}, false
	}
	item, tail := tidy(m[1]), tidy(m[2])
	if item == "" || tail == "" || hasDigit(tail) {
		return ParsedName{}, false
	}
	return ParsedName{Flavor: ptr(tail), ItemName: item}, true
}

// Rule 5: "<name> <NNNmg> <tail>"; the dose stays with the item name.
func matchDoseTail(name string) (ParsedName, bool) {
	m := dosePattern.FindStringSubmatch(name)
	if m == nil {
		return ParsedName{}, false
	}
	tail := tidy(m[3])
	if tail == "" || hasDigit(tail) {
		return ParsedName{}, false
	}
	return ParsedName{Flavor: ptr(tail), ItemName: tidy(m[1] + " " + m[2])}, true
}

// Rule 6: "<name>, X" or "<name> - X" where X has no digits.
func matchTrailingClause(name string) (ParsedName, bool) {
	m := trailingPattern.FindStringSubmatch(name)
	if m == nil {
		return ParsedName{}, false
	}
	item, tail := tidy(m[1]), tidy(m[2])
	if item == "" || tail == "" || hasDigit(tail) {
		return ParsedName{}, false
	}
	return ParsedName{Flavor: ptr(tail), ItemName: item}, true
}

func (p *FlavorParser) foldKey(s string) string {
	return p.fold.String(spacePattern.ReplaceAllString(strings.TrimSpace(s), " "))
}

func phrasePattern(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(words, `\s+`)
}

func inWordPair(before, after string) bool {
	return pairJoinBefore.MatchString(before) || pairJoinAfter.MatchString(after)
}

func followedByOil(rest string) bool {
	rest = strings.TrimLeft(rest, " \t-,")
	return len(rest) >= 3 && strings.EqualFold(rest[:3], "oil")
}

func normalize(s string) string {
	return spacePattern.ReplaceAllString(strings.TrimSpace(norm.NFC.String(s)), " ")
}

// tidy repairs the punctuation left behind after removing a phrase
func tidy(s string) string {
	s = emptyParens.ReplaceAllString(s, " ")
	s = spaceBeforeComma.ReplaceAllString(s, ",")
	s = commaRunPattern.ReplaceAllString(s, ",")
	s = spacePattern.ReplaceAllString(s, " ")
	s = strings.Trim(s, " ,-")
	return s
}

func trimTrailingComma(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ","))
}

func hasDigit(s string) bool {
	return digitPattern.MatchString(s)
}

func ptr(s string) *string {
	return &s
}
