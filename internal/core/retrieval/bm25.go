package retrieval

import "math"

const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// BM25 is an Okapi BM25 model over a fixed tokenized corpus. Terms whose
// raw idf is negative are floored to epsilon times the mean idf.
type BM25 struct {
	docFreqs []map[string]int
	docLens  []float64
	avgdl    float64
	idf      map[string]float64
}

func NewBM25(corpus [][]string) *BM25 {
	m := &BM25{
		docFreqs: make([]map[string]int, len(corpus)),
		docLens:  make([]float64, len(corpus)),
		idf:      make(map[string]float64),
	}

	// terms keeps first-seen corpus order so the idf sum is reproducible.
	nd := make(map[string]int)
	var terms []string
	total := 0
	for i, doc := range corpus {
		freqs := make(map[string]int, len(doc))
		for _, tok := range doc {
			freqs[tok]++
			if freqs[tok] > 1 {
				continue
			}
			if nd[tok] == 0 {
				terms = append(terms, tok)
			}
			nd[tok]++
		}
		m.docFreqs[i] = freqs
		m.docLens[i] = float64(len(doc))
		total += len(doc)
	}
	if len(corpus) > 0 {
		m.avgdl = float64(total) / float64(len(corpus))
	}

	n := float64(len(corpus))
	idfSum := 0.0
	var negative []string
	for _, tok := range terms {
		freq := nd[tok]
		idf := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		m.idf[tok] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, tok)
		}
	}
	if len(m.idf) > 0 {
		eps := bm25Epsilon * (idfSum / float64(len(m.idf)))
		for _, tok := range negative {
			m.idf[tok] = eps
		}
	}
	return m
}

// Scores returns the BM25 score of every corpus document for the query.
// Repeated query tokens contribute once per occurrence.
func (m *BM25) Scores(query []string) []float64 {
	scores := make([]float64, len(m.docFreqs))
	if m.avgdl == 0 {
		return scores
	}
	for _, q := range query {
		idf, ok := m.idf[q]
		if !ok {
			continue
		}
		for i, freqs := range m.docFreqs {
			tf := float64(freqs[q])
			if tf == 0 {
				continue
			}
			denom := tf + bm25K1*(1-bm25B+bm25B*m.docLens[i]/m.avgdl)
			scores[i] += idf * (tf * (bm25K1 + 1) / denom)
		}
	}
	return scores
}
