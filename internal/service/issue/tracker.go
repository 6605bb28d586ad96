package issue

import (
	"errors"
	"fmt"
	"sync"

	"call-review-service/internal/observability/metrics"
	"call-review-service/internal/service/form"
	"call-review-service/internal/service/validate"
)

// ErrUnknownIssue is returned for IDs the tracker never issued.
var ErrUnknownIssue = errors.New("unknown issue")

type entry struct {
	issue validate.Issue
	lc    *Lifecycle
}

// Tracker holds the issues of one run together with the form they were
// raised on. Fixes produce new form versions; the issues themselves are
// never edited.
type Tracker struct {
	mu      sync.Mutex
	runID   string
	form    *form.Form
	entries []*entry
	byID    map[string]*entry
}

// NewTracker opens every issue. Issues must already carry IDs.
func NewTracker(runID string, f *form.Form, issues []validate.Issue) *Tracker {
	t := &Tracker{
		runID: runID,
		form:  f,
		byID:  make(map[string]*entry, len(issues)),
	}
	for _, is := range issues {
		e := &entry{issue: is, lc: NewLifecycle(is.ID)}
		t.entries = append(t.entries, e)
		t.byID[is.ID] = e
	}
	return t
}

// RunID returns the run the issues belong to.
func (t *Tracker) RunID() string { return t.runID }

// Form returns the current form version.
func (t *Tracker) Form() *form.Form {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.form
}

// Open returns the issues still awaiting a reviewer, in report order.
func (t *Tracker) Open() []validate.Issue {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []validate.Issue
	for _, e := range t.entries {
		if e.lc.IsOpen() {
			out = append(out, e.issue)
		}
	}
	return out
}

// State returns the lifecycle state of an issue.
func (t *Tracker) State(id string) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownIssue, id)
	}
	return e.lc.State(), nil
}

// Resolve applies the reviewer's corrected answer to the issue's field and
// resolves every open issue on that field. It returns the new form version.
func (t *Tracker) Resolve(id, answer string) (*form.Form, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIssue, id)
	}
	if !e.lc.IsOpen() {
		return nil, e.lc.Resolve()
	}

	next, err := t.form.WithAnswer(e.issue.Field, answer)
	if err != nil {
		return nil, err
	}
	for _, other := range t.entries {
		if other.issue.Field == e.issue.Field && other.lc.Resolve() == nil {
			metrics.DefaultMetrics.RecordIssueClosed(StateResolved.String())
		}
	}
	t.form = next
	return next, nil
}

// Dismiss closes every open issue because the form is being regenerated.
// It returns how many issues were dismissed.
func (t *Tracker) Dismiss() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		if e.lc.Dismiss() {
			n++
			metrics.DefaultMetrics.RecordIssueClosed(StateDismissed.String())
		}
	}
	return n
}
