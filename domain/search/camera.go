package search

import (
	"fmt"
	"math"
	"strings"
)

// Item is one rendered camera-roll hit. Content is already previewed and
// compressed; similarity is rounded to two decimals; date is YYYY-MM-DD.
type Item struct {
	drilldownID    int
	memoryID       string
	role           string
	content        string
	similarity     float64
	date           string
	pairedResponse string
}

// NewItem creates an Item, rounding the similarity.
func NewItem(drilldownID int, memoryID, role, content string, similarity float64, date string) Item {
	return Item{
		drilldownID: drilldownID,
		memoryID:    memoryID,
		role:        role,
		content:     content,
		similarity:  RoundSimilarity(similarity),
		date:        date,
	}
}

// WithPairedResponse returns a copy carrying the assistant reply rendered
// under the item.
func (i Item) WithPairedResponse(response string) Item {
	i.pairedResponse = response
	return i
}

// DrilldownID returns the handle minted for this hit.
func (i Item) DrilldownID() int { return i.drilldownID }

// MemoryID returns the underlying memory UUID.
func (i Item) MemoryID() string { return i.memoryID }

// Role returns the conversational role, or "".
func (i Item) Role() string { return i.role }

// Content returns the preview text.
func (i Item) Content() string { return i.content }

// Similarity returns the rounded similarity.
func (i Item) Similarity() float64 { return i.similarity }

// Date returns the YYYY-MM-DD creation date.
func (i Item) Date() string { return i.date }

// PairedResponse returns the attached assistant reply, or "".
func (i Item) PairedResponse() string { return i.pairedResponse }

// RoundSimilarity rounds to two decimals.
func RoundSimilarity(similarity float64) float64 {
	return math.Round(similarity*100) / 100
}

// Result is one camera-roll page.
type Result struct {
	query string
	zoom  ZoomLevel
	items []Item
	total int64
}

// NewResult creates a Result. total is the corpus size the shot was taken
// over.
func NewResult(query string, zoom ZoomLevel, items []Item, total int64) Result {
	copied := make([]Item, len(items))
	copy(copied, items)
	return Result{query: query, zoom: zoom, items: copied, total: total}
}

// Query returns the query string.
func (r Result) Query() string { return r.query }

// Zoom returns the zoom level of this page.
func (r Result) Zoom() ZoomLevel { return r.zoom }

// Items returns the rendered hits.
func (r Result) Items() []Item {
	result := make([]Item, len(r.items))
	copy(result, r.items)
	return result
}

// Total returns the corpus size searched.
func (r Result) Total() int64 { return r.total }

// Render produces the stable human-readable camera-roll block.
func (r Result) Render() string {
	var b strings.Builder

	b.WriteString("[CAMERA-ROLL]\n")
	fmt.Fprintf(&b, "Query: %q\n", r.query)
	fmt.Fprintf(&b, "Zoom: %s | Found: %d/%d\n\n", r.zoom, len(r.items), r.total)

	for idx, item := range r.items {
		fmt.Fprintf(&b, "[%d] %.0f%% #%d", idx+1, item.similarity*100, item.drilldownID)
		if item.role != "" {
			fmt.Fprintf(&b, " [%s]", strings.ToUpper(item.role))
		}
		b.WriteString(" " + item.content + "\n")
		if item.pairedResponse != "" {
			b.WriteString("    [CR] " + item.pairedResponse + "\n")
		}
	}
	if len(r.items) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("drill_down(ID) for full content | get_memory_by_id(ID) for quick view\n")
	b.WriteString("[/CAMERA-ROLL]")

	return b.String()
}
