package chunker

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

var (
	reDate = regexp.MustCompile(`\b(?:19|20)\d{2}-\d{2}-\d{2}\b` +
		`|\b\d{1,2}/\d{1,2}/\d{2,4}\b` +
		`|\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+\d{1,2}(?:,\s*\d{4})?\b` +
		`|\b(?:in|since|by|during|from|until)\s+(?:19|20)\d{2}\b`)
	reCitation = regexp.MustCompile(`\[\d+(?:\s*[,\-]\s*\d+)*\]` +
		`|\([A-Z][A-Za-z\-]+(?:\s+et al\.)?,?\s+\d{4}[a-z]?\)`)
	reCrossRef = regexp.MustCompile(`(?i)\b(?:see|cf\.)\s+(?:section|table|figure|fig\.|chapter|appendix|page)\b` +
		`|\b(?:Table|Figure|Fig\.|Section|Appendix|Equation|Eq\.)\s+\d+(?:\.\d+)*`)
	reUnit = regexp.MustCompile(`\d(?:[\d,]*\d)?(?:\.\d+)?\s?(?:%|(?:mm|cm|km|kg|mg|ms|ns|Hz|kHz|MHz|GHz|KB|MB|GB|TB|kW|MW|kWh|USD|EUR|m|g|s|V|W|A|K)\b|°[CF])`)
)

// Quality computes the content heuristics of a chunk. They are indicators
// for retrieval ranking, not exact classifications.
func Quality(content string) doctree.QualityMetrics {
	words := strings.Fields(content)
	numeric := 0
	for _, w := range words {
		if strings.IndexFunc(w, unicode.IsDigit) >= 0 {
			numeric++
		}
	}

	q := doctree.QualityMetrics{
		HasNumericData:     numeric > 0,
		HasDates:           reDate.MatchString(content),
		HasCitations:       reCitation.MatchString(content),
		HasCrossReferences: reCrossRef.MatchString(content),
		HasUnits:           reUnit.MatchString(content),
	}
	if len(words) > 0 {
		q.NumericDensity = roundTo(float64(numeric)/float64(len(words)), 3)
	}
	return q
}

func roundTo(v float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
