package textedit

import "github.com/hupe1980/redline/model"

// Edit is one redline in a batch.
type Edit interface {
	// Document returns the id of the document the edit targets.
	Document() string
	// Apply computes the edited text and the number of target matches
	// (zero for range edits).
	Apply(text string) (string, int, error)
}

type rangeEdit model.RangeEdit

func (e rangeEdit) Document() string { return e.DocumentID }

func (e rangeEdit) Apply(text string) (string, int, error) {
	out, err := ApplyRange(text, e.Start, e.End, e.Replacement)
	return out, 0, err
}

type targetEdit model.TargetEdit

func (e targetEdit) Document() string { return e.DocumentID }

func (e targetEdit) Apply(text string) (string, int, error) {
	return ApplyTarget(text, e.Target, e.Occurrence, e.Replacement)
}

// Range adapts a RangeEdit for ApplyBatch.
func Range(e model.RangeEdit) Edit { return rangeEdit(e) }

// Target adapts a TargetEdit for ApplyBatch.
func Target(e model.TargetEdit) Edit { return targetEdit(e) }

// Result is the outcome of one batch edit.
type Result struct {
	DocumentID string
	// Text is the document text after this edit. Empty on failure.
	Text string
	// Matches is the total match count for target edits, also on failure.
	Matches int
	Err     error
}

// OK reports whether the edit applied.
func (r Result) OK() bool { return r.Err == nil }

// ApplyBatch applies edits independently and returns one Result per edit in
// input order. lookup supplies the current text of a document; it is called
// at most once per id. Edits for the same document chain: each sees the
// output of the previous successful edit. A failed edit never affects the
// others.
func ApplyBatch(edits []Edit, lookup func(id string) (string, error)) []Result {
	type state struct {
		text string
		err  error
	}
	docs := make(map[string]*state)
	results := make([]Result, len(edits))

	for i, e := range edits {
		id := e.Document()
		st, ok := docs[id]
		if !ok {
			text, err := lookup(id)
			st = &state{text: text, err: err}
			docs[id] = st
		}
		results[i].DocumentID = id
		if st.err != nil {
			results[i].Err = st.err
			continue
		}

		out, n, err := e.Apply(st.text)
		results[i].Matches = n
		if err != nil {
			results[i].Err = err
			continue
		}
		st.text = out
		results[i].Text = out
	}
	return results
}

// Final returns the last successful text per document, for documents with at
// least one successful edit.
func Final(results []Result) map[string]string {
	out := make(map[string]string)
	for _, r := range results {
		if r.OK() {
			out[r.DocumentID] = r.Text
		}
	}
	return out
}
