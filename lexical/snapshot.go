package lexical

import (
	"cmp"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/redline/lexical/bm25"
	"github.com/hupe1980/redline/model"
)

type posting struct {
	doc uint32
	pos uint32
}

type document struct {
	id     string
	text   []rune
	tokens []Token
}

// snapshot is an immutable, fully built index.
type snapshot struct {
	docs     []document
	postings map[string][]posting
	bitmaps  map[string]*roaring.Bitmap
	scorer   *bm25.MemoryIndex
}

// newSnapshot indexes docs, which must be sorted by id.
func newSnapshot(docs []document) *snapshot {
	s := &snapshot{
		docs:     docs,
		postings: make(map[string][]posting),
		bitmaps:  make(map[string]*roaring.Bitmap),
		scorer:   bm25.New(),
	}
	for i := range docs {
		d := uint32(i)
		terms := make([]string, len(docs[i].tokens))
		for p, tok := range docs[i].tokens {
			terms[p] = tok.Text
			s.postings[tok.Text] = append(s.postings[tok.Text], posting{doc: d, pos: uint32(p)})
			bm, ok := s.bitmaps[tok.Text]
			if !ok {
				bm = roaring.New()
				s.bitmaps[tok.Text] = bm
			}
			bm.Add(d)
		}
		s.scorer.Add(d, terms)
	}
	for _, bm := range s.bitmaps {
		bm.RunOptimize()
	}
	return s
}

func newDocument(id, text string) document {
	return document{id: id, text: []rune(text), tokens: Tokenize(text)}
}

type match struct {
	doc   uint32
	start int
	end   int
}

// find returns every phrase match of terms in document, then offset order.
func (s *snapshot) find(terms []string) []match {
	if len(terms) == 0 {
		return nil
	}

	bms := make([]*roaring.Bitmap, 0, len(terms))
	for _, t := range terms {
		bm, ok := s.bitmaps[t]
		if !ok {
			return nil
		}
		bms = append(bms, bm)
	}
	candidates := bms[0]
	if len(bms) > 1 {
		candidates = roaring.FastAnd(bms...)
	}

	var out []match
	for _, p := range s.postings[terms[0]] {
		if !candidates.Contains(p.doc) {
			continue
		}
		toks := s.docs[p.doc].tokens
		last := int(p.pos) + len(terms) - 1
		if last >= len(toks) {
			continue
		}
		ok := true
		for i := 1; i < len(terms); i++ {
			if toks[int(p.pos)+i].Text != terms[i] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, match{doc: p.doc, start: toks[p.pos].Start, end: toks[last].End})
		}
	}
	return out
}

// search ranks, paginates and renders matches.
func (s *snapshot) search(terms []string, opts model.SearchOptions) []model.SearchHit {
	matches := s.find(terms)

	if opts.Rank == model.RankRelevance && len(matches) > 0 {
		scores := s.scorer.Score(terms)
		slices.SortStableFunc(matches, func(a, b match) int {
			if a.doc == b.doc {
				return 0
			}
			if c := cmp.Compare(scores[b.doc], scores[a.doc]); c != 0 {
				return c
			}
			return cmp.Compare(a.doc, b.doc)
		})
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(matches) {
			return nil
		}
		matches = matches[opts.Offset:]
	}
	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}

	hits := make([]model.SearchHit, len(matches))
	for i, m := range matches {
		d := &s.docs[m.doc]
		hits[i] = model.SearchHit{
			DocumentID: d.id,
			Offset:     m.start,
			Context:    window(d.text, m.start, m.end, opts.Buffer),
		}
	}
	return hits
}

// window returns text[start-buffer : end+buffer] clamped to the text.
func window(text []rune, start, end, buffer int) string {
	if buffer < 0 {
		buffer = 0
	}
	lo := max(start-buffer, 0)
	hi := min(end+buffer, len(text))
	return string(text[lo:hi])
}
