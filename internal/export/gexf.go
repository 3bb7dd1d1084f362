package export

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/masahif/sitegraph/internal/graph"
)

const gexfNamespace = "http://gexf.net/1.3"

// GEXF node attribute ids
const (
	gexfAttrURL     = "0"
	gexfAttrFetched = "1"
	gexfAttrDepth   = "2"
	gexfAttrStatus  = "3"
	gexfAttrReason  = "4"
	gexfAttrTitle   = "5"
)

type gexfDocument struct {
	XMLName xml.Name  `xml:"gexf"`
	Xmlns   string    `xml:"xmlns,attr"`
	Version string    `xml:"version,attr"`
	Meta    gexfMeta  `xml:"meta"`
	Graph   gexfGraph `xml:"graph"`
}

type gexfMeta struct {
	LastModified string `xml:"lastmodifieddate,attr,omitempty"`
	Creator      string `xml:"creator,omitempty"`
	Description  string `xml:"description,omitempty"`
}

type gexfGraph struct {
	DefaultEdgeType string         `xml:"defaultedgetype,attr"`
	Mode            string         `xml:"mode,attr"`
	Attributes      gexfAttributes `xml:"attributes"`
	Nodes           []gexfNode     `xml:"nodes>node"`
	Edges           []gexfEdge     `xml:"edges>edge"`
}

type gexfAttributes struct {
	Class      string          `xml:"class,attr"`
	Attributes []gexfAttribute `xml:"attribute"`
}

type gexfAttribute struct {
	ID    string `xml:"id,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type gexfNode struct {
	ID        string          `xml:"id,attr"`
	Label     string          `xml:"label,attr"`
	AttValues []gexfAttrValue `xml:"attvalues>attvalue"`
}

type gexfAttrValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

type gexfEdge struct {
	ID     string `xml:"id,attr"`
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

func encodeGEXF(w io.Writer, snap graph.Snapshot, meta Meta) error {
	doc := gexfDocument{
		Xmlns:   gexfNamespace,
		Version: "1.3",
		Meta: gexfMeta{
			Creator:     meta.Creator,
			Description: describe(meta),
		},
		Graph: gexfGraph{
			DefaultEdgeType: "directed",
			Mode:            "static",
			Attributes: gexfAttributes{
				Class: "node",
				Attributes: []gexfAttribute{
					{ID: gexfAttrURL, Title: "url", Type: "string"},
					{ID: gexfAttrFetched, Title: "fetched", Type: "boolean"},
					{ID: gexfAttrDepth, Title: "depth", Type: "integer"},
					{ID: gexfAttrStatus, Title: "status", Type: "string"},
					{ID: gexfAttrReason, Title: "reason", Type: "string"},
					{ID: gexfAttrTitle, Title: "title", Type: "string"},
				},
			},
			Nodes: make([]gexfNode, 0, len(snap.Nodes)),
			Edges: make([]gexfEdge, 0, len(snap.Edges)),
		},
	}
	if !meta.Created.IsZero() {
		doc.Meta.LastModified = meta.Created.Format("2006-01-02")
	}

	for _, node := range snap.Nodes {
		values := []gexfAttrValue{
			{For: gexfAttrURL, Value: node.URL},
			{For: gexfAttrFetched, Value: strconv.FormatBool(node.Fetched)},
			{For: gexfAttrDepth, Value: strconv.Itoa(node.Depth)},
			{For: gexfAttrStatus, Value: statusOf(node)},
		}
		if node.Reason != "" {
			values = append(values, gexfAttrValue{For: gexfAttrReason, Value: node.Reason})
		}
		if node.Title != "" {
			values = append(values, gexfAttrValue{For: gexfAttrTitle, Value: node.Title})
		}

		doc.Graph.Nodes = append(doc.Graph.Nodes, gexfNode{
			ID:        strconv.Itoa(node.ID),
			Label:     node.URL,
			AttValues: values,
		})
	}

	for i, edge := range snap.Edges {
		doc.Graph.Edges = append(doc.Graph.Edges, gexfEdge{
			ID:     strconv.Itoa(i),
			Source: strconv.Itoa(edge.Source),
			Target: strconv.Itoa(edge.Target),
		})
	}

	return writeXML(w, doc)
}

func writeXML(w io.Writer, doc any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// statusOf names the crawl state of a node for export
func statusOf(node graph.Node) string {
	if node.Status == graph.StatusPending {
		return "pending"
	}
	return node.Status
}

func describe(meta Meta) string {
	if meta.Description != "" {
		return meta.Description
	}
	if meta.Seed != "" {
		return "Link graph crawled from " + meta.Seed
	}
	return ""
}
