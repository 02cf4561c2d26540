package models

import (
	"law_arch/internal/citation"
)

type SourceFormat string

const (
	FormatHTML SourceFormat = "html"
	FormatCLML SourceFormat = "clml"
	FormatUSLM SourceFormat = "uslm"
	FormatPDF  SourceFormat = "pdf"
	FormatJSON SourceFormat = "json"
)

// TextSpan is one paragraph of provision text.
type TextSpan struct {
	Text string `json:"text"`
}

// Section is a node of the normalized tree. Subsections use the same type
// and are owned by their parent.
type Section struct {
	Citation     citation.Citation `json:"citation"`
	Heading      string            `json:"heading,omitempty"`
	Text         []TextSpan        `json:"text,omitempty"`
	History      []TextSpan        `json:"history,omitempty"`
	Children     []*Section        `json:"children,omitempty"`
	SourceFormat SourceFormat      `json:"source_format,omitempty"`
	RawChecksum  string            `json:"raw_checksum,omitempty"`
	Position     int               `json:"position"`
}

type Subsection = Section

type Act struct {
	Citation     citation.Citation
	Title        string
	SectionCount int
	Sections     []*Section
}

type GuidanceType string

const (
	GuidanceRevProc      GuidanceType = "Revenue Procedure"
	GuidanceRevRul       GuidanceType = "Revenue Ruling"
	GuidanceNotice       GuidanceType = "Notice"
	GuidanceAnnouncement GuidanceType = "Announcement"
)

// GuidanceDocument is one entry of a drop listing.
type GuidanceDocument struct {
	Type     GuidanceType
	Number   string
	Year     int
	Filename string
	URL      string
	Citation citation.Citation
}

// SectionRecord is the durable form of a normalized section.
type SectionRecord struct {
	Key          string `bson:"_id" json:"key"`
	Jurisdiction string `bson:"jurisdiction" json:"jurisdiction"`
	ActKey       string `bson:"act_key" json:"act_key"`
	Citation     string `bson:"citation" json:"citation"`
	Position     int    `bson:"position" json:"position"`
	Heading      string `bson:"heading" json:"heading"`
	Document     string `bson:"document" json:"document"`
	XML          string `bson:"xml" json:"xml"`
	RawChecksum  string `bson:"raw_checksum" json:"raw_checksum"`
	SourceFormat string `bson:"source_format" json:"source_format"`
	UpdatedAt    int64  `bson:"updated_at" json:"updated_at"`
}

type ActRecord struct {
	Key          string   `bson:"_id" json:"key"`
	Jurisdiction string   `bson:"jurisdiction" json:"jurisdiction"`
	Citation     string   `bson:"citation" json:"citation"`
	Title        string   `bson:"title" json:"title"`
	SectionCount int      `bson:"section_count" json:"section_count"`
	SectionKeys  []string `bson:"section_keys" json:"section_keys"`
	XML          string   `bson:"xml" json:"xml"`
	UpdatedAt    int64    `bson:"updated_at" json:"updated_at"`
}
