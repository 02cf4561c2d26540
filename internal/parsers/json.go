package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"law_arch/internal/citation"
	"law_arch/internal/models"
)

// JSONParser reads REST API responses. The provision may be wrapped in a
// "result" envelope; subsections come as "children" and whole-act listings
// as "documents.items".
type JSONParser struct{}

type jsonNode struct {
	Section   string          `json:"section"`
	Number    string          `json:"number"`
	Heading   string          `json:"heading"`
	Title     string          `json:"title"`
	Text      json.RawMessage `json:"text"`
	Children  []jsonNode      `json:"children"`
	Documents *struct {
		Items []jsonNode `json:"items"`
	} `json:"documents"`
}

type jsonEnvelope struct {
	Result *jsonNode `json:"result"`
}

func (p *JSONParser) Format() models.SourceFormat { return models.FormatJSON }

func decodeJSON(raw []byte) (*jsonNode, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, malformed(models.FormatJSON, errEmptyPayload)
	}
	if raw[0] != '{' {
		return nil, malformed(models.FormatJSON, fmt.Errorf("expected an object"))
	}
	var env jsonEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, malformed(models.FormatJSON, err)
	}
	if env.Result != nil {
		return env.Result, nil
	}
	var node jsonNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, malformed(models.FormatJSON, err)
	}
	return &node, nil
}

func (p *JSONParser) ParseSection(raw []byte, c citation.Citation) (*models.Section, error) {
	node, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	section := models.NewSection(c, "")
	fillJSON(section, node)
	stamp(section, models.FormatJSON, checksum(raw))
	if section.Heading == "" && len(section.Text) == 0 && section.IsLeaf() {
		return section, mismatch(models.FormatJSON, "heading and text")
	}
	return section, nil
}

// ParseDocument maps documents.items to top level sections.
func (p *JSONParser) ParseDocument(raw []byte, act citation.Citation) ([]*models.Section, error) {
	node, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	if node.Documents == nil || len(node.Documents.Items) == 0 {
		return nil, mismatch(models.FormatJSON, "documents.items")
	}
	sum := checksum(raw)
	var out []*models.Section
	seen := make(map[string]bool)
	for i, item := range node.Documents.Items {
		label := sectionLabel(item.label())
		if label == "" {
			label = strconv.Itoa(i + 1)
		}
		if seen[label] {
			continue
		}
		seen[label] = true
		s := models.NewSection(act.WithSection(label), "")
		s.Position = len(out) + 1
		fillJSON(s, &item)
		stamp(s, models.FormatJSON, sum)
		out = append(out, s)
	}
	return out, nil
}

func (n *jsonNode) label() string {
	if n.Section != "" {
		return n.Section
	}
	return n.Number
}

func fillJSON(s *models.Section, n *jsonNode) {
	s.Heading = normalizeSpace(n.Heading)
	if s.Heading == "" {
		s.Heading = normalizeSpace(n.Title)
	}
	s.Text = append(s.Text, spans(jsonText(n.Text)...)...)

	children := n.Children
	if len(children) == 0 && n.Documents != nil {
		children = n.Documents.Items
	}
	for i := range children {
		label := numLabel(children[i].label())
		if label == "" {
			label = strconv.Itoa(i + 1)
		}
		child := models.NewSection(childCitation(s.Citation, label), "")
		fillJSON(child, &children[i])
		if err := models.AppendChild(s, child); err != nil {
			s.Text = append(s.Text, child.Text...)
		}
	}
}

// jsonText accepts either a string or an array of strings.
func jsonText(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}
