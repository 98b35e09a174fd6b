package crossval

import (
	"encoding/json"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jooke-shop/sourcing-cli/internal/model"
)

// Alias lists are matched against normalised keys: lower case with spaces,
// underscores and hyphens removed. The first alias present wins.
var (
	entryAliases = []string{
		"entryscore", "opportunityscore", "진출추천점수", "진출점수", "추천점수", "기회점수", "진출기회점수", "entry", "score",
	}
	marketAliases = []string{
		"marketscore", "marketpotential", "marketability", "market", "시장성", "한국시장성", "시장성점수",
	}
	competitionAliases = []string{
		"competitionscore", "competition", "competitionintensity", "경쟁강도", "경쟁",
	}
	marginAliases = []string{
		"marginpercent", "netmarginpercent", "expectedmargin", "netmargin", "margin", "예상마진율", "순마진율", "마진율", "예상마진", "순마진", "마진",
	}
	priceAliases = []string{
		"koreanpricekrw", "koreanprice", "localpricekrw", "pricekrw", "한국예상판매가", "예상판매가", "판매가",
	}
	landedAliases = []string{
		"landedcostkrw", "landedcost", "totalcostkrw", "totalcost", "배송비포함총비용", "총비용",
	}
	recommendAliases = []string{
		"recommend", "recommended", "recommendation", "추천여부", "추천",
	}
	keywordAliases = []string{
		"keywords", "keyword", "핵심키워드", "키워드",
	}
	hashtagAliases = []string{
		"hashtags", "hashtag", "해시태그",
	}
	targetAliases = []string{
		"targetcustomer", "targetcustomers", "target", "타겟고객층", "타겟고객", "타겟",
	}
)

var (
	numberRe        = regexp.MustCompile(`\d+(?:\.\d+)?`)
	rangeRe         = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[-~–]\s*(\d+(?:\.\d+)?)`)
	labelRe         = regexp.MustCompile(`^[\s>*#\-•\d.)]*\**([^:：\n*]{1,40}?)\**\s*[:：]\s*(.+?)\s*$`)
	parenRe         = regexp.MustCompile(`\([^)]*\)`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	singleQuotedRe  = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'`)
	keyStrip        = strings.NewReplacer(" ", "", "_", "", "-", "", "\t", "", `"`, "", "'", "", "{", "", "}", "")
)

// ExtractSignals recovers the comparable values from one analysis text. It
// never fails: unreadable fields are left absent.
func ExtractSignals(text string) model.Signals {
	fields := decodeObject(text)
	if fields == nil {
		fields = labelledPairs(text)
	}
	if len(fields) == 0 {
		return model.Signals{}
	}

	var s model.Signals
	if v, ok := lookup(fields, entryAliases); ok {
		s.EntryScore = score(v, 100, 0, 100)
	}
	if v, ok := lookup(fields, marketAliases); ok {
		s.MarketScore = score(v, 10, 1, 10)
	}
	if v, ok := lookup(fields, competitionAliases); ok {
		s.CompetitionScore = score(v, 10, 1, 10)
	}
	if v, ok := lookup(fields, marginAliases); ok {
		if f, ok := toFloat64(v); ok {
			s.MarginPercent = model.Some(f)
		}
	}
	if v, ok := lookup(fields, priceAliases); ok {
		if f, ok := toFloat64(v); ok && f >= 0 {
			s.LocalPriceKRW = model.Some(f)
		}
	}
	if v, ok := lookup(fields, landedAliases); ok {
		if f, ok := toFloat64(v); ok && f >= 0 {
			s.LandedCostKRW = model.Some(f)
		}
	}
	if v, ok := lookup(fields, recommendAliases); ok {
		if b, ok := toBool(v); ok {
			s.Recommend = model.Some(b)
		}
	}
	if v, ok := lookup(fields, keywordAliases); ok {
		s.Keywords = toStrings(v)
	}
	if v, ok := lookup(fields, hashtagAliases); ok {
		s.Hashtags = toStrings(v)
	}
	if v, ok := lookup(fields, targetAliases); ok {
		if str, ok := v.(string); ok {
			s.TargetCustomer = strings.TrimSpace(str)
		}
	}
	return s
}

// cleanJSON strips markdown code fences and surrounding prose, leaving the
// outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func decodeObject(text string) map[string]any {
	cleaned := cleanJSON(text)
	if !strings.HasPrefix(cleaned, "{") {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(cleaned), &m); err == nil {
		return m
	}
	if err := json.Unmarshal([]byte(repairJSON(cleaned)), &m); err == nil {
		return m
	}
	return nil
}

// repairJSON fixes the slips models make most often: trailing commas and,
// when the object has no double quotes at all, single-quoted strings.
func repairJSON(s string) string {
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	if !strings.Contains(s, `"`) {
		s = singleQuotedRe.ReplaceAllString(s, `"$1"`)
	}
	return s
}

// labelledPairs collects "label: value" pairs from free text. One line may
// carry several pairs separated by commas or semicolons.
func labelledPairs(text string) map[string]any {
	out := make(map[string]any)
	for _, line := range strings.Split(text, "\n") {
		for _, seg := range pairSegments(line) {
			m := labelRe.FindStringSubmatch(seg)
			if m == nil {
				continue
			}
			key := normKey(m[1])
			val := strings.Trim(m[2], " \t,;{}\"'")
			if key == "" || val == "" {
				continue
			}
			if _, dup := out[key]; !dup {
				out[key] = val
			}
		}
	}
	return out
}

// pairSegments splits a line on commas and semicolons. A piece without a
// colon is glued back onto the previous one, so "42,000원" and keyword
// lists stay whole.
func pairSegments(line string) []string {
	var segs []string
	start := 0
	for i, r := range line {
		if r == ',' || r == ';' {
			segs = appendSegment(segs, line, start, i)
			start = i + 1
		}
	}
	return appendSegment(segs, line, start, len(line))
}

func appendSegment(segs []string, line string, start, end int) []string {
	piece := line[start:end]
	if len(segs) == 0 || strings.ContainsAny(piece, ":：") {
		return append(segs, piece)
	}
	segs[len(segs)-1] += line[start-1 : end]
	return segs
}

func normKey(k string) string {
	k = parenRe.ReplaceAllString(strings.ToLower(k), "")
	return keyStrip.Replace(strings.TrimSpace(k))
}

// lookup resolves the first alias present in fields, descending into nested
// objects when the top level has no match.
func lookup(fields map[string]any, aliases []string) (any, bool) {
	norm := make(map[string]any, len(fields))
	for k, v := range fields {
		nk := normKey(k)
		if _, dup := norm[nk]; !dup {
			norm[nk] = v
		}
	}
	for _, a := range aliases {
		if v, ok := norm[a]; ok && v != nil {
			return v, true
		}
	}
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		if nested, ok := fields[k].(map[string]any); ok {
			if v, ok := lookup(nested, aliases); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// score parses a value on the given scale, rescaling fractions such as
// "8/10", and clamps it to [lo, hi].
func score(v any, scale, lo, hi float64) model.Field[float64] {
	if s, ok := v.(string); ok {
		if num, den, ok := fraction(s); ok {
			return model.Some(clamp(num/den*scale, lo, hi))
		}
	}
	f, ok := toFloat64(v)
	if !ok {
		return model.Field[float64]{}
	}
	return model.Some(clamp(f, lo, hi))
}

func fraction(s string) (num, den float64, ok bool) {
	parts := strings.SplitN(strings.ReplaceAll(s, ",", ""), "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	n := numberRe.FindString(parts[0])
	d := numberRe.FindString(parts[1])
	if n == "" || d == "" {
		return 0, 0, false
	}
	num, _ = strconv.ParseFloat(n, 64)
	den, _ = strconv.ParseFloat(d, 64)
	if den == 0 {
		return 0, 0, false
	}
	return num, den, true
}

// toFloat64 accepts JSON numbers and numeric strings such as "65%",
// "42,000원" or "60~70%" (a range yields its midpoint).
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0, false
		}
		if m := rangeRe.FindStringSubmatch(s); m != nil {
			a, _ := strconv.ParseFloat(m[1], 64)
			b, _ := strconv.ParseFloat(m[2], 64)
			return (a + b) / 2, true
		}
		if num, _, ok := fraction(s); ok {
			return num, true
		}
		loc := numberRe.FindStringIndex(s)
		if loc == nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(s[loc[0]:loc[1]], 64)
		if err != nil {
			return 0, false
		}
		if negativeSign(s[:loc[0]]) {
			f = -f
		}
		return f, true
	default:
		return 0, false
	}
}

// negativeSign reports whether the text before a number ends in a minus
// sign that is not part of a word, as in "약 -5%" but not "KRW-42000".
func negativeSign(prefix string) bool {
	prefix = strings.TrimRight(prefix, " ")
	r, size := utf8.DecodeLastRuneInString(prefix)
	if r != '-' && r != '−' {
		return false
	}
	before, _ := utf8.DecodeLastRuneInString(prefix[:len(prefix)-size])
	return before == utf8.RuneError || !(unicode.IsLetter(before) || unicode.IsDigit(before))
}

var (
	// Answers that are negative on their own.
	negativeWords = []string{"아니", "아님", "비추천", "불가", "no", "false", "not", "n"}
	// Stems that take endings: 추천합니다, 권장함, recommended.
	positiveStems = []string{"추천", "권장", "recommend"}
	// Whole words only, so "예상" does not read as "예".
	positiveWords = []string{"예", "네", "yes", "true", "y"}
	// Korean negation anywhere in the answer.
	negationMarkers = []string{"않", "안 ", "안함", "안해", "아님", "아니", "못", "없", "불가", "비추천"}
	negationTokens  = []string{"not", "no", "never", "dont", "don't", "cannot"}
)

// toBool reads a yes/no answer. A positive word under negation, such as
// "추천하지 않음" or "not recommended", is false; text that is neither
// clearly positive nor clearly negative is unknown.
func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case float64:
		return b != 0, true
	case string:
		s := strings.ToLower(strings.TrimSpace(b))
		if s == "" {
			return false, false
		}
		words := strings.FieldsFunc(s, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
		})
		for _, w := range negativeWords {
			if s == w || (len(w) > 1 && len(words) > 0 && words[0] == w) {
				return false, true
			}
			if w[0] >= utf8.RuneSelf && strings.HasPrefix(s, w) {
				return false, true
			}
		}
		positive := hasPositive(words)
		if negated(s, words) {
			return false, positive
		}
		return positive, positive
	default:
		return false, false
	}
}

func hasPositive(words []string) bool {
	for _, w := range words {
		if slices.Contains(positiveWords, w) {
			return true
		}
		for _, stem := range positiveStems {
			if strings.Contains(w, stem) {
				return true
			}
		}
	}
	return false
}

func negated(s string, words []string) bool {
	if strings.HasSuffix(s, " 안") {
		return true
	}
	for _, m := range negationMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	for _, w := range words {
		if slices.Contains(negationTokens, w) || strings.HasSuffix(w, "n't") {
			return true
		}
	}
	return false
}

func toStrings(v any) []string {
	var raw []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		sep := ","
		if !strings.Contains(t, ",") && strings.Count(t, "#") > 1 {
			sep = " "
		}
		raw = strings.Split(t, sep)
	}
	var out []string
	for _, s := range raw {
		if s = strings.Trim(s, " \t\"'[]"); s != "" {
			out = append(out, s)
		}
	}
	return out
}
