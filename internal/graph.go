package internal

import (
	"fmt"
	"sort"
)

// NodeKind identifies the workflow stage a graph node represents.
type NodeKind string

const (
	NodeResearchStart     NodeKind = "research_start"
	NodeReferences        NodeKind = "references_prepared"
	NodeDimensionsFound   NodeKind = "dimensions_identified"
	NodeDimensionStart    NodeKind = "dimension_start"
	NodeAspectResearch    NodeKind = "aspect_research_complete"
	NodeDimensionDocument NodeKind = "dimension_document_complete"
	NodeDimensionSummary  NodeKind = "dimension_summary" // synthetic reduce node
	NodeResearchComplete  NodeKind = "research_complete"
)

// GraphNode is one positioned node of the trace view. Synthetic nodes have a
// nil SourceEvent.
type GraphNode struct {
	ID          string                 `json:"id"`
	Kind        NodeKind               `json:"kind"`
	Label       string                 `json:"label"`
	Subtitle    string                 `json:"subtitle,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	X           float64                `json:"x"`
	Y           float64                `json:"y"`
	SourceEvent *Event                 `json:"source_event,omitempty"`
}

// GraphEdge connects two nodes by id.
type GraphEdge struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// Graph is the synthesized map-reduce execution diagram for one session.
// A synthesis pass always produces a fresh Graph value; nodes and edges are
// never mutated afterwards.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Fixed stage columns. Missing stages leave their column empty rather than
// shifting later stages, so positions stay comparable across sessions.
const (
	colStart      = 0
	colReferences = 1
	colDimensions = 2
	colDimStart   = 3
	colAspect     = 4
	colSummary    = 5
	colComplete   = 6

	colSpacing = 280.0
	rowSpacing = 140.0
)

// Synthesize builds the execution graph from a batch of normalized events.
// Dimensions and their order are derived from aspect_research_complete events
// alone; the manifest is recorded as diagnostic metadata but never trusted,
// since it may be stale relative to what actually executed.
//
// The output is deterministic: the same multiset of events produces a
// byte-identical graph regardless of the ordering the caller supplies.
func Synthesize(events []*Event, dimensions []string) (*Graph, error) {
	if events == nil {
		return nil, &GraphError{Reason: "nil event list"}
	}

	sorted := make([]*Event, 0, len(events))
	for _, event := range events {
		if event != nil {
			sorted = append(sorted, event)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	b := &graphBuilder{documents: make(map[string]*Event)}
	for _, event := range sorted {
		b.observe(event)
	}
	return b.build(dimensions), nil
}

// graphBuilder accumulates the lifecycle events a synthesis pass needs.
type graphBuilder struct {
	start      *Event
	references *Event
	identified *Event
	complete   *Event

	dimOrder   []string            // first-seen order on aspect events
	aspects    map[string][]*Event // dimension -> aspect events, first-seen order
	aspectSeen map[string]bool     // "dimension/aspect" pairs already recorded
	documents  map[string]*Event   // dimension -> dimension_document_complete

	graph Graph
}

func (b *graphBuilder) observe(event *Event) {
	switch event.Type {
	case EventResearchStart:
		if b.start == nil {
			b.start = event
		}
	case EventReferencesPrepared:
		if b.references == nil {
			b.references = event
		}
	case EventDimensionsFound:
		if b.identified == nil {
			b.identified = event
		}
	case EventAspectComplete:
		if event.Dimension == "" {
			return
		}
		// A retried aspect carries new payload bytes, so the content-hash
		// pass lets it through. Only the first event per dimension/aspect
		// pair becomes a node; repeats would collide on the node id.
		key := event.Dimension + "/" + event.Aspect
		if b.aspectSeen[key] {
			return
		}
		if b.aspectSeen == nil {
			b.aspectSeen = make(map[string]bool)
		}
		b.aspectSeen[key] = true
		if b.aspects == nil {
			b.aspects = make(map[string][]*Event)
		}
		if _, seen := b.aspects[event.Dimension]; !seen {
			b.dimOrder = append(b.dimOrder, event.Dimension)
		}
		b.aspects[event.Dimension] = append(b.aspects[event.Dimension], event)
	case EventDimensionDocument:
		if event.Dimension != "" && b.documents[event.Dimension] == nil {
			b.documents[event.Dimension] = event
		}
	case EventResearchComplete:
		if b.complete == nil {
			b.complete = event
		}
	}
}

func (b *graphBuilder) build(manifest []string) *Graph {
	totalAspects := 0
	for _, dim := range b.dimOrder {
		totalAspects += len(b.aspects[dim])
	}

	// Vertical center of the whole aspect band; single-column stages sit on it.
	bandCenter := 0.0
	if totalAspects > 1 {
		bandCenter = float64(totalAspects-1) * rowSpacing / 2
	}

	if b.start != nil {
		b.addNode(GraphNode{
			ID:          "start",
			Kind:        NodeResearchStart,
			Label:       "Research Start",
			Subtitle:    stringField(b.start.Data, "query"),
			X:           colStart * colSpacing,
			Y:           bandCenter,
			SourceEvent: b.start,
		})
	}

	if b.references != nil {
		node := GraphNode{
			ID:          "references",
			Kind:        NodeReferences,
			Label:       "References Prepared",
			X:           colReferences * colSpacing,
			Y:           bandCenter,
			SourceEvent: b.references,
		}
		if count, ok := numberField(b.references.Data, "reference_count"); ok {
			node.Subtitle = fmt.Sprintf("%d references", count)
			node.Metadata = map[string]interface{}{"reference_count": count}
		}
		b.addNode(node)
		if b.start != nil {
			b.addEdge("start", "references")
		}
	}

	if b.identified != nil {
		node := GraphNode{
			ID:          "dimensions",
			Kind:        NodeDimensionsFound,
			Label:       "Dimensions Identified",
			Subtitle:    fmt.Sprintf("%d executed", len(b.dimOrder)),
			X:           colDimensions * colSpacing,
			Y:           bandCenter,
			SourceEvent: b.identified,
		}
		if len(manifest) > 0 {
			// Planned names, for comparing against what actually ran.
			node.Metadata = map[string]interface{}{"manifest": append([]string(nil), manifest...)}
		}
		b.addNode(node)
		switch {
		case b.references != nil:
			b.addEdge("references", "dimensions")
		case b.start != nil:
			b.addEdge("start", "dimensions")
		}
	}

	// One contiguous aspect stack across all dimensions, so dimensions with
	// different aspect counts never overlap vertically.
	row := 0
	for _, dim := range b.dimOrder {
		dimAspects := b.aspects[dim]
		firstRow := row

		dimID := "dimension/" + dim
		summaryID := "summary/" + dim

		for _, aspect := range dimAspects {
			aspectID := fmt.Sprintf("aspect/%s/%s", dim, aspect.Aspect)
			node := GraphNode{
				ID:          aspectID,
				Kind:        NodeAspectResearch,
				Label:       aspect.Aspect,
				Subtitle:    dim,
				X:           colAspect * colSpacing,
				Y:           float64(row) * rowSpacing,
				SourceEvent: aspect,
			}
			if words, ok := numberField(aspect.Data, "word_count"); ok {
				node.Metadata = map[string]interface{}{"word_count": words}
			}
			b.addNode(node)
			b.addEdge(dimID, aspectID)
			b.addEdge(aspectID, summaryID)
			row++
		}

		lastRow := row - 1
		dimCenter := float64(firstRow+lastRow) * rowSpacing / 2

		b.addNode(GraphNode{
			ID:       dimID,
			Kind:     NodeDimensionStart,
			Label:    dim,
			Subtitle: fmt.Sprintf("%d aspects", len(dimAspects)),
			X:        colDimStart * colSpacing,
			Y:        dimCenter,
		})
		if b.identified != nil {
			b.addEdge("dimensions", dimID)
		}

		b.addNode(b.summaryNode(dim, summaryID, dimAspects, dimCenter))
		if b.complete != nil {
			b.addEdge(summaryID, "complete")
		}
	}

	if b.complete != nil {
		b.addNode(GraphNode{
			ID:          "complete",
			Kind:        NodeResearchComplete,
			Label:       "Research Complete",
			X:           colComplete * colSpacing,
			Y:           bandCenter,
			SourceEvent: b.complete,
		})
	}

	b.sortForDeterminism()
	return &b.graph
}

// summaryNode produces the per-dimension reduce node: the real document event
// when post-processing finished, a synthetic stand-in otherwise, so the graph
// is complete even for a workflow still in flight.
func (b *graphBuilder) summaryNode(dim, id string, dimAspects []*Event, y float64) GraphNode {
	if doc := b.documents[dim]; doc != nil {
		node := GraphNode{
			ID:          id,
			Kind:        NodeDimensionDocument,
			Label:       dim,
			Subtitle:    "document",
			X:           colSummary * colSpacing,
			Y:           y,
			SourceEvent: doc,
		}
		if words, ok := numberField(doc.Data, "word_count"); ok {
			node.Subtitle = fmt.Sprintf("%d words", words)
			node.Metadata = map[string]interface{}{"word_count": words}
		}
		return node
	}

	names := make([]string, 0, len(dimAspects))
	for _, aspect := range dimAspects {
		names = append(names, aspect.Aspect)
	}
	return GraphNode{
		ID:       id,
		Kind:     NodeDimensionSummary,
		Label:    dim,
		Subtitle: fmt.Sprintf("%d aspects", len(names)),
		Metadata: map[string]interface{}{
			"aspect_count": len(names),
			"aspects":      names,
		},
		X: colSummary * colSpacing,
		Y: y,
	}
}

func (b *graphBuilder) addNode(node GraphNode) {
	b.graph.Nodes = append(b.graph.Nodes, node)
}

func (b *graphBuilder) addEdge(source, target string) {
	b.graph.Edges = append(b.graph.Edges, GraphEdge{
		ID:       source + "->" + target,
		SourceID: source,
		TargetID: target,
	})
}

// sortForDeterminism fixes node order by column then row then id, and edge
// order by id, so two passes over the same events serialize identically.
func (b *graphBuilder) sortForDeterminism() {
	sort.SliceStable(b.graph.Nodes, func(i, j int) bool {
		a, c := b.graph.Nodes[i], b.graph.Nodes[j]
		if a.X != c.X {
			return a.X < c.X
		}
		if a.Y != c.Y {
			return a.Y < c.Y
		}
		return a.ID < c.ID
	})
	sort.SliceStable(b.graph.Edges, func(i, j int) bool {
		return b.graph.Edges[i].ID < b.graph.Edges[j].ID
	})
}

// ManifestFromEvents extracts the planned dimension names announced by the
// first dimensions_identified event, if any. The manifest is advisory: graph
// structure is always derived from the aspect events that actually ran.
func ManifestFromEvents(events []*Event) []string {
	for _, event := range events {
		if event == nil || event.Type != EventDimensionsFound {
			continue
		}
		raw, ok := event.Data["dimensions"].([]interface{})
		if !ok {
			return nil
		}
		names := make([]string, 0, len(raw))
		for _, v := range raw {
			if name, ok := v.(string); ok && name != "" {
				names = append(names, name)
			}
		}
		return names
	}
	return nil
}

// NodesOfKind returns the nodes of one kind in layout order.
func (g *Graph) NodesOfKind(kind NodeKind) []GraphNode {
	var nodes []GraphNode
	for _, node := range g.Nodes {
		if node.Kind == kind {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// EdgesInto returns the edges targeting the given node id.
func (g *Graph) EdgesInto(targetID string) []GraphEdge {
	var edges []GraphEdge
	for _, edge := range g.Edges {
		if edge.TargetID == targetID {
			edges = append(edges, edge)
		}
	}
	return edges
}
