package export

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/masahif/sitegraph/internal/graph"
)

const graphMLNamespace = "http://graphml.graphdrawing.org/xmlns"

type graphMLDocument struct {
	XMLName xml.Name     `xml:"graphml"`
	Xmlns   string       `xml:"xmlns,attr"`
	Keys    []graphMLKey `xml:"key"`
	Graph   graphMLGraph `xml:"graph"`
}

type graphMLKey struct {
	ID   string `xml:"id,attr"`
	For  string `xml:"for,attr"`
	Name string `xml:"attr.name,attr"`
	Type string `xml:"attr.type,attr"`
}

type graphMLGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Data        []graphMLData `xml:"data"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphMLData `xml:"data"`
}

type graphMLEdge struct {
	ID     string `xml:"id,attr"`
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

type graphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

var graphMLKeys = []graphMLKey{
	{ID: "url", For: "node", Name: "url", Type: "string"},
	{ID: "fetched", For: "node", Name: "fetched", Type: "boolean"},
	{ID: "depth", For: "node", Name: "depth", Type: "int"},
	{ID: "status", For: "node", Name: "status", Type: "string"},
	{ID: "reason", For: "node", Name: "reason", Type: "string"},
	{ID: "title", For: "node", Name: "title", Type: "string"},
	{ID: "seed", For: "graph", Name: "seed", Type: "string"},
	{ID: "creator", For: "graph", Name: "creator", Type: "string"},
}

func encodeGraphML(w io.Writer, snap graph.Snapshot, meta Meta) error {
	doc := graphMLDocument{
		Xmlns: graphMLNamespace,
		Keys:  graphMLKeys,
		Graph: graphMLGraph{
			ID:          "G",
			EdgeDefault: "directed",
			Nodes:       make([]graphMLNode, 0, len(snap.Nodes)),
			Edges:       make([]graphMLEdge, 0, len(snap.Edges)),
		},
	}
	if meta.Seed != "" {
		doc.Graph.Data = append(doc.Graph.Data, graphMLData{Key: "seed", Value: meta.Seed})
	}
	if meta.Creator != "" {
		doc.Graph.Data = append(doc.Graph.Data, graphMLData{Key: "creator", Value: meta.Creator})
	}

	for _, node := range snap.Nodes {
		data := []graphMLData{
			{Key: "url", Value: node.URL},
			{Key: "fetched", Value: strconv.FormatBool(node.Fetched)},
			{Key: "depth", Value: strconv.Itoa(node.Depth)},
			{Key: "status", Value: statusOf(node)},
		}
		if node.Reason != "" {
			data = append(data, graphMLData{Key: "reason", Value: node.Reason})
		}
		if node.Title != "" {
			data = append(data, graphMLData{Key: "title", Value: node.Title})
		}

		doc.Graph.Nodes = append(doc.Graph.Nodes, graphMLNode{
			ID:   "n" + strconv.Itoa(node.ID),
			Data: data,
		})
	}

	for i, edge := range snap.Edges {
		doc.Graph.Edges = append(doc.Graph.Edges, graphMLEdge{
			ID:     "e" + strconv.Itoa(i),
			Source: "n" + strconv.Itoa(edge.Source),
			Target: "n" + strconv.Itoa(edge.Target),
		})
	}

	return writeXML(w, doc)
}
