package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/masahif/sitegraph/internal/graph"
)

// jsonDocument follows the node-link layout used by common graph libraries
type jsonDocument struct {
	Directed   bool       `json:"directed"`
	Multigraph bool       `json:"multigraph"`
	Graph      jsonMeta   `json:"graph"`
	Nodes      []jsonNode `json:"nodes"`
	Links      []jsonLink `json:"links"`
}

type jsonMeta struct {
	Creator     string `json:"creator,omitempty"`
	Description string `json:"description,omitempty"`
	Seed        string `json:"seed,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	Created     string `json:"created,omitempty"`
}

type jsonNode struct {
	ID      int    `json:"id"`
	URL     string `json:"url"`
	Fetched bool   `json:"fetched"`
	Depth   int    `json:"depth"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Title   string `json:"title,omitempty"`
}

type jsonLink struct {
	ID     int `json:"id"`
	Source int `json:"source"`
	Target int `json:"target"`
}

func encodeJSON(w io.Writer, snap graph.Snapshot, meta Meta) error {
	doc := jsonDocument{
		Directed: true,
		Graph: jsonMeta{
			Creator:     meta.Creator,
			Description: describe(meta),
			Seed:        meta.Seed,
			RunID:       meta.RunID,
		},
		Nodes: make([]jsonNode, 0, len(snap.Nodes)),
		Links: make([]jsonLink, 0, len(snap.Edges)),
	}
	if !meta.Created.IsZero() {
		doc.Graph.Created = meta.Created.UTC().Format(time.RFC3339)
	}

	for _, node := range snap.Nodes {
		doc.Nodes = append(doc.Nodes, jsonNode{
			ID:      node.ID,
			URL:     node.URL,
			Fetched: node.Fetched,
			Depth:   node.Depth,
			Status:  statusOf(node),
			Reason:  node.Reason,
			Title:   node.Title,
		})
	}
	for i, edge := range snap.Edges {
		doc.Links = append(doc.Links, jsonLink{ID: i, Source: edge.Source, Target: edge.Target})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
