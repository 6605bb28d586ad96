package issue

import (
	"fmt"
	"sync/atomic"

	"call-review-service/internal/service/validate"
)

// Generator hands out issue IDs of the form "<runID>-issue-N".
type Generator struct {
	counter uint64
}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Next(runID string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-issue-%d", runID, n)
}

// Assign sets an ID on every issue that has none, in order.
func (g *Generator) Assign(runID string, issues []validate.Issue) {
	for i := range issues {
		if issues[i].ID == "" {
			issues[i].ID = g.Next(runID)
		}
	}
}
