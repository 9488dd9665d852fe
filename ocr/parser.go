package ocr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"peraduan/config"

	"github.com/adrg/strutil"
)

// Item is one purchased product read off the receipt.
type Item struct {
	Name string
	Qty  int
}

// ParsedReceipt is the structured output of the hint-driven parser.
type ParsedReceipt struct {
	StoreName     string
	StoreLocation string
	Amount        string // "RM{value:.2f}", "" when nothing parseable
	Products      []Item
}

// Parser extracts store, location, amount and products from OCR lines.
// Parsing is deterministic for a given line list and hint set.
type Parser struct {
	StoreThreshold    float64
	LocationThreshold float64
	ProductThreshold  float64
	MaxProducts       int
	ItemBrand         string
}

func NewParser(cfg config.OCRConfig) *Parser {
	p := &Parser{
		StoreThreshold:    cfg.StoreThreshold,
		LocationThreshold: cfg.LocationThreshold,
		ProductThreshold:  cfg.ProductThreshold,
		MaxProducts:       cfg.MaxProducts,
		ItemBrand:         cfg.ItemBrand,
	}
	if p.StoreThreshold == 0 {
		p.StoreThreshold = 0.80
	}
	if p.LocationThreshold == 0 {
		p.LocationThreshold = 0.85
	}
	if p.ProductThreshold == 0 {
		p.ProductThreshold = 0.76
	}
	if p.MaxProducts == 0 {
		p.MaxProducts = 3
	}
	if p.ItemBrand == "" {
		p.ItemBrand = "KHIND"
	}
	return p
}

// Parse runs all extractors over the line list.
func (p *Parser) Parse(lines []string) ParsedReceipt {
	cleaned := make([]string, 0, len(lines))
	for _, ln := range lines {
		if s := strings.TrimSpace(ln); s != "" {
			cleaned = append(cleaned, s)
		}
	}

	store := p.storeName(cleaned)
	return ParsedReceipt{
		StoreName:     store,
		StoreLocation: p.storeLocation(store, cleaned),
		Amount:        p.amountSpent(cleaned),
		Products:      p.products(cleaned),
	}
}

var ratcliff strutil.StringMetric = ratcliffObershelp{}

func similarity(a, b string) float64 {
	return strutil.Similarity(strings.ToUpper(strings.TrimSpace(a)), strings.ToUpper(strings.TrimSpace(b)), ratcliff)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToUpper(s), strings.ToUpper(sub))
}

func headLines(lines []string, n int) []string {
	if len(lines) < n {
		n = len(lines)
	}
	return lines[:n]
}

func tailLines(lines []string, n int) []string {
	if len(lines) < n {
		n = len(lines)
	}
	return lines[len(lines)-n:]
}

/************************************************
/**** Store name ****/
/************************************************/

func (p *Parser) storeName(lines []string) string {
	raw := p.rawStoreName(lines)
	if raw == "" {
		return ""
	}
	return p.canonicalizeStore(raw)
}

func (p *Parser) rawStoreName(lines []string) string {
	head := headLines(lines, 12)

	var hintMatch string
	for _, ln := range head {
		for _, hint := range PreferredStoreHints {
			if containsFold(ln, hint) {
				hintMatch = ln
				break
			}
		}
		if hintMatch != "" {
			break
		}
	}

	// AEON prints a generic corporate header; the branch line near the
	// bottom is the usable store name.
	if headerContains(head, "AEON") {
		if branch := aeonBranchLine(lines); branch != "" {
			return branch
		}
	}

	if hintMatch != "" {
		return hintMatch
	}

	for _, ln := range head {
		for _, hint := range genericRetailHints {
			if containsFold(ln, hint) {
				return ln
			}
		}
	}

	if caps := longestAllCapsLine(head); caps != "" {
		return caps
	}
	if len(head) > 0 {
		return head[0]
	}
	return ""
}

func headerContains(head []string, token string) bool {
	for _, ln := range head {
		if containsFold(ln, token) {
			return true
		}
	}
	return false
}

func aeonBranchLine(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		ln := lines[i]
		if !containsFold(ln, "AEON") {
			continue
		}
		for _, hint := range aeonBranchHints {
			if containsFold(ln, hint) {
				return ln
			}
		}
	}
	return ""
}

func longestAllCapsLine(lines []string) string {
	best := ""
	for _, ln := range lines {
		hasLetter := false
		allCaps := true
		for _, r := range ln {
			if r >= 'a' && r <= 'z' {
				allCaps = false
				break
			}
			if r >= 'A' && r <= 'Z' {
				hasLetter = true
			}
		}
		if allCaps && hasLetter && len(ln) > len(best) {
			best = ln
		}
	}
	return best
}

func (p *Parser) canonicalizeStore(raw string) string {
	for _, hint := range PreferredStoreHints {
		if similarity(raw, hint) >= p.StoreThreshold {
			return hint
		}
	}
	return raw
}

/************************************************
/**** Store location ****/
/************************************************/

var postcodeRe = regexp.MustCompile(`\b(\d{5})\b`)

func (p *Parser) storeLocation(store string, lines []string) string {
	norm := strings.ToUpper(strings.TrimSpace(store))
	if norm != "" {
		if v, ok := StoreLocationMap[norm]; ok {
			return v
		}
		for k, v := range StoreLocationMap {
			if strings.Contains(norm, k) || strings.Contains(k, norm) {
				return v
			}
		}
	}

	scan := append([]string{}, headLines(lines, 25)...)
	scan = append(scan, tailLines(lines, 60)...)

	for _, ln := range scan {
		up := strings.ToUpper(ln)
		for _, state := range malaysianStates {
			idx := strings.Index(up, state)
			if idx < 0 {
				continue
			}
			if postcodeRe.MatchString(up) {
				if city := cityBeforeState(up[:idx]); city != "" {
					return p.canonicalizeLocation(titleCase(city) + ", " + titleCase(state))
				}
			}
			return p.canonicalizeLocation(titleCase(state))
		}
	}
	return ""
}

// cityBeforeState pulls the city token(s) out of the address fragment
// preceding the state name ("41200 KLANG " -> "KLANG").
func cityBeforeState(fragment string) string {
	fragment = postcodeRe.ReplaceAllString(fragment, " ")
	fragment = strings.Trim(fragment, " ,.-")
	fields := strings.Fields(fragment)
	if len(fields) == 0 {
		return ""
	}
	// Up to the last two words; addresses put street parts further left.
	start := len(fields) - 2
	if start < 0 {
		start = 0
	}
	return strings.Join(fields[start:], " ")
}

func (p *Parser) canonicalizeLocation(raw string) string {
	for _, known := range knownLocations() {
		if similarity(raw, known) >= p.LocationThreshold {
			return known
		}
	}
	return raw
}

func titleCase(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}

/************************************************
/**** Amount spent ****/
/************************************************/

const (
	amountMin = 2.0
	amountMax = 100000.0
)

var (
	currencyAmountRe = regexp.MustCompile(`(?i)RM\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	bareDecimalRe    = regexp.MustCompile(`([0-9][0-9,]*\.[0-9]{2})`)
	totalsKeywordRe  = regexp.MustCompile(`(?i)GRAND\s*TOTAL|TOTAL\s*AMOUNT|NETT?\s*AMOUNT|AMOUNT\s*DUE|BALANCE\s*DUE|JUMLAH|TOTAL`)
	itemScanStopRe   = regexp.MustCompile(`(?i)TOTAL|REMARKS|CASH|TUNAI|CHANGE|BAKI`)
	qtyContextRe     = regexp.MustCompile(`(?i)QTY|PCS|UNIT|[0-9]+\s*X|X\s*[0-9]+`)
)

type priceCandidate struct {
	value float64
	score int // 3 currency-tagged, 2 bare decimal
	line  int
	pos   int
}

// amountSpent walks the fallback ladder: brand item-line price, totals
// keyword, max currency-tagged number, max bare number. The first rule
// producing a value inside [2, 100000] wins.
func (p *Parser) amountSpent(lines []string) string {
	if v, ok := p.itemLinePrice(lines); ok {
		return formatAmount(v)
	}
	if v, ok := totalsKeywordPrice(lines); ok {
		return formatAmount(v)
	}
	if v, ok := maxPrice(lines, true); ok {
		return formatAmount(v)
	}
	if v, ok := maxPrice(lines, false); ok {
		return formatAmount(v)
	}
	return ""
}

func formatAmount(v float64) string {
	return fmt.Sprintf("RM%.2f", v)
}

func (p *Parser) itemLinePrice(lines []string) (float64, bool) {
	var candidates []priceCandidate
	for i, ln := range lines {
		if !containsFold(ln, p.ItemBrand) {
			continue
		}
		for j := i; j < len(lines) && j <= i+4; j++ {
			if j > i && itemScanStopRe.MatchString(lines[j]) {
				break
			}
			candidates = append(candidates, lineCandidates(lines[j], j)...)
		}
	}
	return pickCandidate(candidates)
}

func totalsKeywordPrice(lines []string) (float64, bool) {
	var candidates []priceCandidate
	for i, ln := range lines {
		if !totalsKeywordRe.MatchString(ln) {
			continue
		}
		candidates = append(candidates, lineCandidates(ln, i)...)
	}
	return pickCandidate(candidates)
}

func maxPrice(lines []string, currencyOnly bool) (float64, bool) {
	best := 0.0
	found := false
	for i, ln := range lines {
		for _, c := range lineCandidates(ln, i) {
			if currencyOnly && c.score != 3 {
				continue
			}
			if c.value < amountMin || c.value > amountMax {
				continue
			}
			if !found || c.value > best {
				best = c.value
				found = true
			}
		}
	}
	return best, found
}

// lineCandidates collects price candidates on one line. Currency-tagged
// numbers score 3, bare two-decimal numbers score 2; integers are
// ignored, as is anything inside a quantity context (within ±10 chars of
// QTY/pcs/unit/Nx/xN).
func lineCandidates(line string, lineNo int) []priceCandidate {
	var out []priceCandidate

	for _, m := range currencyAmountRe.FindAllStringSubmatchIndex(line, -1) {
		numStr := line[m[2]:m[3]]
		if !strings.Contains(numStr, ".") {
			continue
		}
		if inQtyContext(line, m[0], m[1]) {
			continue
		}
		if v, err := parsePrice(numStr); err == nil {
			out = append(out, priceCandidate{value: v, score: 3, line: lineNo, pos: m[0]})
		}
	}

	for _, m := range bareDecimalRe.FindAllStringSubmatchIndex(line, -1) {
		// Skip numbers already claimed by a currency tag.
		if claimedByCurrency(line, m[0]) {
			continue
		}
		if inQtyContext(line, m[0], m[1]) {
			continue
		}
		if v, err := parsePrice(line[m[2]:m[3]]); err == nil {
			out = append(out, priceCandidate{value: v, score: 2, line: lineNo, pos: m[0]})
		}
	}

	return out
}

func claimedByCurrency(line string, pos int) bool {
	for _, m := range currencyAmountRe.FindAllStringSubmatchIndex(line, -1) {
		if pos >= m[0] && pos < m[1] {
			return true
		}
	}
	return false
}

func inQtyContext(line string, start, end int) bool {
	lo := start - 10
	if lo < 0 {
		lo = 0
	}
	hi := end + 10
	if hi > len(line) {
		hi = len(line)
	}
	// Exclude the number itself; "149.00" must not read as "9 x ...".
	window := line[lo:start] + " " + line[end:hi]
	return qtyContextRe.MatchString(window)
}

func parsePrice(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}

// pickCandidate chooses the rightmost candidate of the highest score
// whose value lies inside the accepted range.
func pickCandidate(candidates []priceCandidate) (float64, bool) {
	best := priceCandidate{score: -1, line: -1, pos: -1}
	found := false
	for _, c := range candidates {
		if c.value < amountMin || c.value > amountMax {
			continue
		}
		if c.score > best.score ||
			(c.score == best.score && c.line > best.line) ||
			(c.score == best.score && c.line == best.line && c.pos > best.pos) {
			best = c
			found = true
		}
	}
	return best.value, found
}

/************************************************
/**** Products ****/
/************************************************/

var (
	aeonItemStartRe = regexp.MustCompile(`^([0-9]+)\s*[xX]\b`)
	barcodeRe       = regexp.MustCompile(`\b[0-9]{8,}\b`)
	productCodeRe   = regexp.MustCompile(`\b[A-Z]{2,}[A-Z0-9\-]*[0-9][A-Z0-9\-]*\b`)
)

var aeonStopWords = []string{"SUBTOTAL", "DISCOUNT", "TAX", "CHANGE", "PAYMENT", "TOTAL", "CASH"}

func (p *Parser) products(lines []string) []Item {
	var items []Item
	if headerContains(headLines(lines, 12), "AEON") {
		items = p.aeonItems(lines)
	}
	if len(items) == 0 {
		items = p.hintItems(lines)
	}
	if len(items) == 0 {
		items = p.brandItems(lines)
	}
	if len(items) == 0 {
		items = p.codeItems(lines)
	}
	return p.finishItems(items)
}

// aeonItems handles AEON's block layout: "{n}x" or a long barcode opens
// an item; following lines up to the next item start or a stop word are
// the description.
func (p *Parser) aeonItems(lines []string) []Item {
	var items []Item
	i := 0
	for i < len(lines) {
		ln := lines[i]
		m := aeonItemStartRe.FindStringSubmatch(ln)
		isStart := m != nil || barcodeRe.MatchString(ln)
		if !isStart || aeonStopLine(ln) {
			i++
			continue
		}

		qty := 1
		if m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				qty = n
			}
		}

		var descParts []string
		if rest := cleanItemText(aeonItemStartRe.ReplaceAllString(ln, "")); rest != "" {
			descParts = append(descParts, rest)
		}
		j := i + 1
		for j < len(lines) {
			next := lines[j]
			if aeonItemStartRe.MatchString(next) || barcodeRe.MatchString(next) || aeonStopLine(next) {
				break
			}
			if part := cleanItemText(next); part != "" {
				descParts = append(descParts, part)
			}
			j++
		}
		if name := strings.Join(descParts, " "); name != "" {
			items = append(items, Item{Name: name, Qty: qty})
		}
		i = j
	}
	return items
}

func aeonStopLine(ln string) bool {
	up := strings.ToUpper(ln)
	for _, w := range aeonStopWords {
		if strings.Contains(up, w) {
			return true
		}
	}
	return false
}

// cleanItemText strips barcodes and prices out of a description line.
func cleanItemText(ln string) string {
	ln = barcodeRe.ReplaceAllString(ln, " ")
	ln = currencyAmountRe.ReplaceAllString(ln, " ")
	ln = bareDecimalRe.ReplaceAllString(ln, " ")
	return strings.Join(strings.Fields(ln), " ")
}

func (p *Parser) hintItems(lines []string) []Item {
	var items []Item
	for _, ln := range lines {
		for _, hint := range PreferredProductHints {
			if containsFold(ln, hint) {
				items = append(items, Item{Name: hint, Qty: lineQty(ln)})
			}
		}
	}
	return items
}

func (p *Parser) brandItems(lines []string) []Item {
	var items []Item
	for _, ln := range lines {
		if containsFold(ln, p.ItemBrand) {
			if name := cleanItemText(ln); name != "" {
				items = append(items, Item{Name: name, Qty: lineQty(ln)})
			}
		}
	}
	return items
}

func (p *Parser) codeItems(lines []string) []Item {
	var items []Item
	for _, ln := range lines {
		for _, code := range productCodeRe.FindAllString(strings.ToUpper(ln), -1) {
			items = append(items, Item{Name: code, Qty: lineQty(ln)})
		}
	}
	return items
}

var qtyPrefixRe = regexp.MustCompile(`^([0-9]+)\s*[xX]\b`)

func lineQty(ln string) int {
	if m := qtyPrefixRe.FindStringSubmatch(strings.TrimSpace(ln)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// finishItems canonicalizes names against the hint list, deduplicates by
// (normalized name, qty) and caps the list.
func (p *Parser) finishItems(items []Item) []Item {
	seen := map[string]bool{}
	var out []Item
	for _, it := range items {
		name := p.canonicalizeProduct(it.Name)
		key := strings.ToUpper(name) + "|" + strconv.Itoa(it.Qty)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Item{Name: name, Qty: it.Qty})
		if len(out) >= p.MaxProducts {
			break
		}
	}
	return out
}

func (p *Parser) canonicalizeProduct(raw string) string {
	bestName := raw
	bestScore := 0.0
	for _, hint := range PreferredProductHints {
		if s := similarity(raw, hint); s >= p.ProductThreshold && s > bestScore {
			bestName = hint
			bestScore = s
		}
	}
	return bestName
}
