package plan

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parser extracts structure from raw query text. Parsing never fails:
// anything the tables do not recognize stays in the term list.
type Parser struct {
	vocab *Vocabulary
	now   func() time.Time
}

// NewParser creates a parser over the given vocabulary.
// A nil vocabulary uses the built-in defaults.
func NewParser(vocab *Vocabulary) *Parser {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Parser{
		vocab: vocab,
		now:   time.Now,
	}
}

// Vocabulary returns the word table the parser was built with
func (p *Parser) Vocabulary() *Vocabulary {
	return p.vocab
}

var (
	sizeMinRe = regexp.MustCompile(`(?i)\b(?:larger than|bigger than|greater than|more than|over|above|at least)\s+(\d+(?:\.\d+)?)\s*(tb|gb|mb|kb|b|terabytes?|gigabytes?|megabytes?|kilobytes?|bytes?)\b`)
	sizeMaxRe = regexp.MustCompile(`(?i)\b(?:smaller than|less than|under|below|at most)\s+(\d+(?:\.\d+)?)\s*(tb|gb|mb|kb|b|terabytes?|gigabytes?|megabytes?|kilobytes?|bytes?)\b`)

	dateAbsRe = regexp.MustCompile(`(?i)\b(?:(?:created|modified|updated|added|uploaded)\s+)?(after|since|before)\s+(\d{4}-\d{2}-\d{2})\b`)
	dateRelRe = regexp.MustCompile(`(?i)\b(?:(?:created|modified|updated|added|uploaded)\s+)?(?:in\s+the\s+|within\s+the\s+|from\s+the\s+)?(?:last|past)\s+(\d+)\s+(day|week|month|year)s?\b`)
	dateDayRe = regexp.MustCompile(`(?i)\b(?:(?:created|modified|updated|added|uploaded)\s+)?(?:since|after)\s+(yesterday|today)\b`)

	extGlobRe  = regexp.MustCompile(`(?i)(?:^|\s)\*?\.([a-z0-9]+)\b`)
	extFilesRe = regexp.MustCompile(`(?i)\b([a-z0-9]+)\s+files?\b`)

	packageTokenRe = regexp.MustCompile(`^[\w.-]+/[\w.-]+$`)

	analyticalWords = map[string]struct{}{
		"count": {}, "sum": {}, "average": {}, "total": {}, "aggregate": {},
		"largest": {}, "smallest": {}, "biggest": {}, "newest": {}, "oldest": {},
		"between": {}, "facet": {}, "group": {},
	}

	stopwords = map[string]struct{}{
		"file": {}, "files": {}, "show": {}, "me": {}, "find": {}, "search": {},
		"list": {}, "get": {}, "for": {}, "all": {}, "any": {}, "the": {}, "a": {},
		"an": {}, "with": {}, "that": {}, "are": {}, "is": {}, "in": {}, "of": {},
		"and": {}, "or": {}, "to": {},
	}
)

var sizeUnits = map[string]int64{
	"b": 1, "byte": 1, "bytes": 1,
	"kb": 1 << 10, "kilobyte": 1 << 10, "kilobytes": 1 << 10,
	"mb": 1 << 20, "megabyte": 1 << 20, "megabytes": 1 << 20,
	"gb": 1 << 30, "gigabyte": 1 << 30, "gigabytes": 1 << 30,
	"tb": 1 << 40, "terabyte": 1 << 40, "terabytes": 1 << 40,
}

// Parse builds a QueryPlan from raw text plus scope/target hints.
// Explicit filters, when supplied, override anything extracted from text.
// Conflicting filters (sizeMin > sizeMax) pass through unmodified; rejecting
// them is the orchestrator's job.
func (p *Parser) Parse(raw string, scope Scope, target string, explicit *Filters) *QueryPlan {
	qp := &QueryPlan{
		RawText: raw,
		Scope:   scope,
		Target:  target,
		Intent:  IntentUnspecified,
	}

	working := strings.TrimSpace(raw)
	if working == "" || working == "*" {
		p.applyExplicit(qp, explicit)
		return qp
	}

	analytical := false

	// Size comparisons
	if m := sizeMinRe.FindStringSubmatch(working); m != nil {
		qp.Filters.SizeMin = parseSize(m[1], m[2])
		working = sizeMinRe.ReplaceAllString(working, " ")
		analytical = true
	}
	if m := sizeMaxRe.FindStringSubmatch(working); m != nil {
		qp.Filters.SizeMax = parseSize(m[1], m[2])
		working = sizeMaxRe.ReplaceAllString(working, " ")
		analytical = true
	}

	// Date phrases, absolute then relative
	if m := dateAbsRe.FindStringSubmatch(working); m != nil {
		if ts, err := time.Parse("2006-01-02", m[2]); err == nil {
			if strings.EqualFold(m[1], "before") {
				qp.Filters.CreatedBefore = ts
			} else {
				qp.Filters.CreatedAfter = ts
			}
			working = dateAbsRe.ReplaceAllString(working, " ")
			analytical = true
		}
	}
	if m := dateRelRe.FindStringSubmatch(working); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			qp.Filters.CreatedAfter = p.now().Add(-relativeDuration(n, strings.ToLower(m[2])))
			working = dateRelRe.ReplaceAllString(working, " ")
			analytical = true
		}
	}
	if m := dateDayRe.FindStringSubmatch(working); m != nil {
		cutoff := p.now().Truncate(24 * time.Hour)
		if strings.EqualFold(m[1], "yesterday") {
			cutoff = cutoff.Add(-24 * time.Hour)
		}
		qp.Filters.CreatedAfter = cutoff
		working = dateDayRe.ReplaceAllString(working, " ")
		analytical = true
	}

	// Extension hints. Explicit patterns (*.csv, .csv) are always taken;
	// a bare "<word> files" phrase only when the word is a known extension.
	if m := extGlobRe.FindStringSubmatch(working); m != nil {
		qp.Filters.Extension = strings.ToLower(m[1])
		working = extGlobRe.ReplaceAllString(working, " ")
	} else if m := extFilesRe.FindStringSubmatch(working); m != nil && p.vocab.KnownExtension(m[1]) {
		qp.Filters.Extension = strings.ToLower(m[1])
		working = extFilesRe.ReplaceAllString(working, " ")
	}

	// Tokenize the remainder
	packageLike := false
	for _, tok := range tokenize(working) {
		lower := strings.ToLower(tok)
		if _, ok := stopwords[lower]; ok {
			continue
		}
		if _, ok := analyticalWords[lower]; ok {
			analytical = true
			continue
		}
		if lower == "package" || lower == "packages" {
			packageLike = true
			continue
		}
		if key, value, ok := strings.Cut(tok, "="); ok && key != "" && value != "" {
			qp.Filters.Metadata = append(qp.Filters.Metadata, MetadataPredicate{Key: key, Value: value})
			continue
		}
		if packageTokenRe.MatchString(tok) && strings.Contains(tok, "/") {
			packageLike = true
		}
		qp.Terms = append(qp.Terms, tok)
	}

	// A query that is exactly a known extension is an extension filter,
	// not a literal-text search.
	if len(qp.Terms) == 1 && qp.Filters.Extension == "" && p.vocab.KnownExtension(strings.ToLower(qp.Terms[0])) {
		qp.Filters.Extension = strings.TrimPrefix(strings.ToLower(qp.Terms[0]), ".")
		qp.Terms = nil
	}

	p.applyExplicit(qp, explicit)

	switch {
	case analytical:
		qp.Intent = IntentAnalytical
	case packageLike:
		qp.Intent = IntentPackageDiscovery
	case len(qp.Terms) > 0 || !qp.Filters.Empty():
		qp.Intent = IntentFileSearch
	default:
		qp.Intent = IntentUnspecified
	}

	return qp
}

func (p *Parser) applyExplicit(qp *QueryPlan, explicit *Filters) {
	if explicit == nil {
		return
	}
	if explicit.Extension != "" {
		qp.Filters.Extension = strings.TrimPrefix(strings.ToLower(explicit.Extension), ".")
	}
	if explicit.SizeMin > 0 {
		qp.Filters.SizeMin = explicit.SizeMin
	}
	if explicit.SizeMax > 0 {
		qp.Filters.SizeMax = explicit.SizeMax
	}
	if !explicit.CreatedAfter.IsZero() {
		qp.Filters.CreatedAfter = explicit.CreatedAfter
	}
	if !explicit.CreatedBefore.IsZero() {
		qp.Filters.CreatedBefore = explicit.CreatedBefore
	}
	qp.Filters.Metadata = append(qp.Filters.Metadata, explicit.Metadata...)
}

func parseSize(value, unit string) int64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	mult, ok := sizeUnits[strings.ToLower(unit)]
	if !ok {
		mult = 1
	}
	return int64(v * float64(mult))
}

func relativeDuration(n int, unit string) time.Duration {
	day := 24 * time.Hour
	switch unit {
	case "day":
		return time.Duration(n) * day
	case "week":
		return time.Duration(n) * 7 * day
	case "month":
		return time.Duration(n) * 30 * day
	case "year":
		return time.Duration(n) * 365 * day
	}
	return 0
}

// tokenize splits on whitespace and punctuation, preserving characters that
// matter for the domain: '/', '.', '-', '_', '=', '*'
func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case r == '/', r == '.', r == '-', r == '_', r == '=', r == '*':
			return false
		}
		return true
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "./*")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
