package redline

import (
	"context"
	"slices"
	"time"

	"github.com/hupe1980/redline/blobstore"
	"github.com/hupe1980/redline/model"
	"github.com/hupe1980/redline/textedit"
)

// Outcome is the result of one item of a batch redline.
type Outcome struct {
	DocumentID string
	// Version is the committed version of the document. Zero on failure.
	Version int64
	// Matches is the number of target matches found for target edits.
	Matches int
	Err     error
	Kind    Kind
}

// OK reports whether the item committed.
func (o Outcome) OK() bool { return o.Err == nil }

// BatchResult holds one Outcome per input item, in input order.
type BatchResult struct {
	Outcomes []Outcome
	// Documents are the committed documents, ordered by id.
	Documents []*model.Document
}

// Failed returns the number of items that did not commit.
func (r *BatchResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// RedlineRange applies range edits. All involved documents are locked in one
// acquisition; edits for the same document apply in input order and commit
// together. A failing item never prevents the others from committing, and
// committed items are not rolled back.
//
// The error is non-nil only if ctx ends before the locks are held. Every
// other failure, including a lock timeout, is reported per item.
func (s *Store) RedlineRange(ctx context.Context, edits []model.RangeEdit) (*BatchResult, error) {
	batch := make([]textedit.Edit, len(edits))
	for i, e := range edits {
		batch[i] = textedit.Range(e)
	}
	return s.redline(ctx, "redline range", batch)
}

// RedlineTarget applies target edits with the same batch semantics as
// RedlineRange.
func (s *Store) RedlineTarget(ctx context.Context, edits []model.TargetEdit) (*BatchResult, error) {
	batch := make([]textedit.Edit, len(edits))
	for i, e := range edits {
		batch[i] = textedit.Target(e)
	}
	return s.redline(ctx, "redline target", batch)
}

func (s *Store) redline(ctx context.Context, op string, edits []textedit.Edit) (*BatchResult, error) {
	start := time.Now()
	res, err := s.redlineLocked(ctx, edits)
	if err != nil {
		return nil, err
	}
	failed := res.Failed()
	s.opts.metricsCollector.RecordBatch(op, len(edits), failed, time.Since(start))
	s.opts.logger.LogBatch(ctx, op, len(edits), failed)
	return res, nil
}

func (s *Store) redlineLocked(ctx context.Context, edits []textedit.Edit) (*BatchResult, error) {
	res := &BatchResult{Outcomes: make([]Outcome, len(edits))}

	// Items with malformed ids fail up front and take no lock.
	var (
		pending []textedit.Edit
		slots   []int
		ids     []string
	)
	for i, e := range edits {
		id := e.Document()
		res.Outcomes[i].DocumentID = id
		if err := validateID(id); err != nil {
			res.fail(i, err)
			continue
		}
		pending = append(pending, e)
		slots = append(slots, i)
		ids = append(ids, id)
	}
	if len(pending) == 0 {
		return res, nil
	}

	guard, err := s.locks.Acquire(ctx, ids)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for _, i := range slots {
			res.fail(i, err)
		}
		return res, nil
	}
	defer s.release(ctx, guard)

	type loaded struct {
		doc *model.Document
		rev blobstore.Revision
	}
	docs := make(map[string]loaded)
	results := textedit.ApplyBatch(pending, func(id string) (string, error) {
		doc, rev, err := s.load(ctx, id)
		if err != nil {
			return "", s.loadError(id, err)
		}
		docs[id] = loaded{doc: doc, rev: rev}
		return doc.Text, nil
	})

	final := textedit.Final(results)
	mutated := make([]string, 0, len(final))
	for id := range final {
		mutated = append(mutated, id)
	}
	slices.Sort(mutated)

	commitErrs := make(map[string]error)
	committed := mutated[:0]
	for _, id := range mutated {
		l := docs[id]
		l.doc.Text = final[id]
		if err := s.commit(ctx, l.doc, l.rev, l.doc.Version); err != nil {
			commitErrs[id] = err
			continue
		}
		committed = append(committed, id)
		res.Documents = append(res.Documents, l.doc)
	}
	if len(committed) > 0 {
		s.index.Invalidate(committed...)
	}

	for j, r := range results {
		i := slots[j]
		res.Outcomes[i].Matches = r.Matches
		err := translateError(r.Err)
		if err == nil {
			err = commitErrs[r.DocumentID]
		}
		if err != nil {
			res.fail(i, err)
			continue
		}
		res.Outcomes[i].Version = docs[r.DocumentID].doc.Version
		res.Outcomes[i].Kind = KindOK
	}
	return res, nil
}

func (r *BatchResult) fail(i int, err error) {
	r.Outcomes[i].Err = err
	r.Outcomes[i].Kind = KindOf(err)
	r.Outcomes[i].Version = 0
}
