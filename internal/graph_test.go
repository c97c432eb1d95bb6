package internal

import (
	"encoding/json"
	"testing"
	"time"
)

func aspectEvent(id, dim, aspect string, at time.Time) *Event {
	return &Event{
		ID:        id,
		Type:      EventAspectComplete,
		Timestamp: at,
		Dimension: dim,
		Aspect:    aspect,
		Data:      map[string]interface{}{"word_count": float64(300)},
	}
}

// midRunEvents is a run with two dimensions (3 and 2 aspects) where the
// reduce phase has not happened yet.
func midRunEvents() []*Event {
	base := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	return []*Event{
		{ID: "e1", Type: EventResearchStart, Timestamp: base, Data: map[string]interface{}{"query": "solar adoption"}},
		{ID: "e2", Type: EventReferencesPrepared, Timestamp: base.Add(1 * time.Minute), Data: map[string]interface{}{"reference_count": float64(14)}},
		{ID: "e3", Type: EventDimensionsFound, Timestamp: base.Add(2 * time.Minute), Data: map[string]interface{}{"dimensions": []interface{}{"economics", "policy"}}},
		aspectEvent("e4", "economics", "pricing", base.Add(3*time.Minute)),
		aspectEvent("e5", "economics", "subsidies", base.Add(4*time.Minute)),
		aspectEvent("e6", "economics", "supply chains", base.Add(5*time.Minute)),
		aspectEvent("e7", "policy", "permitting", base.Add(6*time.Minute)),
		aspectEvent("e8", "policy", "grid access", base.Add(7*time.Minute)),
	}
}

func TestSynthesize_RepeatedAspectCollapses(t *testing.T) {
	// A retried aspect arrives as a second event with fresh payload bytes,
	// so byte-level dedup keeps both. The graph still gets one node per
	// dimension/aspect pair, fed by the first event.
	base := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	retry := aspectEvent("e5", "economics", "pricing", base.Add(4*time.Minute))
	retry.Data = map[string]interface{}{"word_count": float64(540)}
	events := []*Event{
		{ID: "e1", Type: EventResearchStart, Timestamp: base, Data: map[string]interface{}{"query": "solar adoption"}},
		aspectEvent("e4", "economics", "pricing", base.Add(3*time.Minute)),
		retry,
	}

	graph, err := Synthesize(events, []string{"economics"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	if got := len(graph.NodesOfKind(NodeAspectResearch)); got != 1 {
		t.Fatalf("aspect nodes = %d, want 1", got)
	}
	if got := len(graph.EdgesInto("aspect/economics/pricing")); got != 1 {
		t.Errorf("edges into aspect node = %d, want 1", got)
	}
	if got := len(graph.EdgesInto("summary/economics")); got != 1 {
		t.Errorf("edges into summary node = %d, want 1", got)
	}
	node := graph.NodesOfKind(NodeAspectResearch)[0]
	if node.SourceEvent == nil || node.SourceEvent.ID != "e4" {
		t.Errorf("aspect node sourced from %+v, want the first event e4", node.SourceEvent)
	}
}

func TestSynthesize_MidRun(t *testing.T) {
	graph, err := Synthesize(midRunEvents(), []string{"economics", "policy"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	if got := len(graph.NodesOfKind(NodeAspectResearch)); got != 5 {
		t.Errorf("aspect nodes = %d, want 5", got)
	}
	if got := len(graph.NodesOfKind(NodeDimensionStart)); got != 2 {
		t.Errorf("dimension start nodes = %d, want 2", got)
	}
	if got := len(graph.NodesOfKind(NodeDimensionSummary)); got != 2 {
		t.Errorf("synthetic summary nodes = %d, want 2", got)
	}
	if got := len(graph.NodesOfKind(NodeResearchComplete)); got != 0 {
		t.Errorf("complete nodes = %d, want 0 for a run still in flight", got)
	}

	// Fan-in onto each summary matches that dimension's aspect count.
	if got := len(graph.EdgesInto("summary/economics")); got != 3 {
		t.Errorf("edges into summary/economics = %d, want 3", got)
	}
	if got := len(graph.EdgesInto("summary/policy")); got != 2 {
		t.Errorf("edges into summary/policy = %d, want 2", got)
	}

	// Without a complete event the summaries are terminal.
	if got := len(graph.EdgesInto("complete")); got != 0 {
		t.Errorf("edges into complete = %d, want 0", got)
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	events := midRunEvents()
	reversed := make([]*Event, len(events))
	for i, event := range events {
		reversed[len(events)-1-i] = event
	}

	first, err := Synthesize(events, []string{"economics", "policy"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	second, err := Synthesize(reversed, []string{"economics", "policy"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	firstDoc, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal error = %v", err)
	}
	secondDoc, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal error = %v", err)
	}
	if string(firstDoc) != string(secondDoc) {
		t.Error("graphs from reordered events are not byte-identical")
	}
}

func TestSynthesize_CompletedRun(t *testing.T) {
	base := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	events := append(midRunEvents(),
		&Event{ID: "e9", Type: EventDimensionDocument, Timestamp: base.Add(8 * time.Minute), Dimension: "economics", Data: map[string]interface{}{"word_count": float64(1200)}},
		&Event{ID: "e10", Type: EventResearchComplete, Timestamp: base.Add(9 * time.Minute)},
	)

	graph, err := Synthesize(events, nil)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	// economics has its real document, policy still gets a synthetic summary.
	if got := len(graph.NodesOfKind(NodeDimensionDocument)); got != 1 {
		t.Errorf("document nodes = %d, want 1", got)
	}
	if got := len(graph.NodesOfKind(NodeDimensionSummary)); got != 1 {
		t.Errorf("synthetic summary nodes = %d, want 1", got)
	}

	docs := graph.NodesOfKind(NodeDimensionDocument)
	if docs[0].ID != "summary/economics" {
		t.Errorf("document node id = %q, want summary/economics", docs[0].ID)
	}
	if docs[0].SourceEvent == nil || docs[0].SourceEvent.ID != "e9" {
		t.Error("document node should reference its source event")
	}

	// Both summaries feed the complete node.
	if got := len(graph.EdgesInto("complete")); got != 2 {
		t.Errorf("edges into complete = %d, want 2", got)
	}
}

func TestSynthesize_Layout(t *testing.T) {
	graph, err := Synthesize(midRunEvents(), nil)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	byID := make(map[string]GraphNode, len(graph.Nodes))
	for _, node := range graph.Nodes {
		byID[node.ID] = node
	}

	// Stage columns are fixed regardless of which stages ran.
	wantX := map[string]float64{
		"start":               0,
		"references":          colSpacing,
		"dimensions":          2 * colSpacing,
		"dimension/economics": 3 * colSpacing,
		"aspect/economics/pricing": 4 * colSpacing,
		"summary/economics":   5 * colSpacing,
	}
	for id, x := range wantX {
		node, ok := byID[id]
		if !ok {
			t.Fatalf("node %q missing", id)
		}
		if node.X != x {
			t.Errorf("node %q X = %v, want %v", id, node.X, x)
		}
	}

	// Aspect rows stack contiguously across dimensions.
	rows := []string{
		"aspect/economics/pricing",
		"aspect/economics/subsidies",
		"aspect/economics/supply chains",
		"aspect/policy/permitting",
		"aspect/policy/grid access",
	}
	for i, id := range rows {
		if got := byID[id].Y; got != float64(i)*rowSpacing {
			t.Errorf("node %q Y = %v, want %v", id, got, float64(i)*rowSpacing)
		}
	}

	// Dimension start and summary center on their aspect band.
	if got := byID["dimension/economics"].Y; got != rowSpacing {
		t.Errorf("dimension/economics Y = %v, want %v", got, rowSpacing)
	}
	if got := byID["summary/policy"].Y; got != 3.5*rowSpacing {
		t.Errorf("summary/policy Y = %v, want %v", got, 3.5*rowSpacing)
	}

	// Single-column stages sit on the center of the whole band.
	if got := byID["start"].Y; got != 2*rowSpacing {
		t.Errorf("start Y = %v, want %v", got, 2*rowSpacing)
	}
}

func TestSynthesize_NilEvents(t *testing.T) {
	_, err := Synthesize(nil, nil)
	if err == nil {
		t.Fatal("Synthesize(nil) expected error, got nil")
	}
	if _, ok := err.(*GraphError); !ok {
		t.Errorf("error type = %T, want *GraphError", err)
	}
}

func TestSynthesize_EmptyEvents(t *testing.T) {
	graph, err := Synthesize([]*Event{}, nil)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(graph.Nodes) != 0 || len(graph.Edges) != 0 {
		t.Errorf("empty input produced %d nodes and %d edges, want none", len(graph.Nodes), len(graph.Edges))
	}
}

func TestSynthesize_ManifestRecordedNotTrusted(t *testing.T) {
	// The manifest names a dimension that never ran; it must not add a node.
	graph, err := Synthesize(midRunEvents(), []string{"economics", "policy", "culture"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	for _, node := range graph.Nodes {
		if node.ID == "dimension/culture" {
			t.Fatal("manifest-only dimension must not produce a node")
		}
	}

	dims := graph.NodesOfKind(NodeDimensionsFound)
	if len(dims) != 1 {
		t.Fatalf("dimensions nodes = %d, want 1", len(dims))
	}
	manifest, ok := dims[0].Metadata["manifest"].([]string)
	if !ok || len(manifest) != 3 {
		t.Errorf("manifest metadata = %v, want the 3 planned names", dims[0].Metadata["manifest"])
	}
}

func TestManifestFromEvents(t *testing.T) {
	events := midRunEvents()
	got := ManifestFromEvents(events)
	if len(got) != 2 || got[0] != "economics" || got[1] != "policy" {
		t.Errorf("ManifestFromEvents() = %v, want [economics policy]", got)
	}

	if got := ManifestFromEvents(nil); got != nil {
		t.Errorf("ManifestFromEvents(nil) = %v, want nil", got)
	}
}

func TestSynthesize_AspectsWithoutDimensionIgnored(t *testing.T) {
	base := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	events := []*Event{
		{ID: "e1", Type: EventAspectComplete, Timestamp: base, Aspect: "orphan"},
		aspectEvent("e2", "economics", "pricing", base.Add(time.Minute)),
	}

	graph, err := Synthesize(events, nil)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got := len(graph.NodesOfKind(NodeAspectResearch)); got != 1 {
		t.Errorf("aspect nodes = %d, want 1 (dimensionless aspect dropped)", got)
	}
}
