package export

import "fmt"

// Row is one session line in an exported timetable.
type Row struct {
	Day       string `csv:"day"`
	Start     string `csv:"start"`
	End       string `csv:"end"`
	Unit      string `csv:"unit"`
	Lecturer  string `csv:"lecturer"`
	Group     string `csv:"group"`
	Venue     string `csv:"venue"`
	Mode      string `csv:"mode"`
	SessionID string `csv:"session_id"`
}

// Document is an exportable timetable: a title, free-form detail lines and the rows.
type Document struct {
	Title   string
	Details []string
	Rows    []Row
}

// Renderer turns a document into file bytes.
type Renderer interface {
	Render(doc Document) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat resolves a renderer by format name.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "csv":
		return NewCSVExporter(), nil
	case "pdf":
		return NewPDFExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

var columns = []struct {
	title string
	width float64
	value func(Row) string
}{
	{"Day", 24, func(r Row) string { return r.Day }},
	{"Start", 16, func(r Row) string { return r.Start }},
	{"End", 16, func(r Row) string { return r.End }},
	{"Unit", 34, func(r Row) string { return r.Unit }},
	{"Lecturer", 44, func(r Row) string { return r.Lecturer }},
	{"Group", 34, func(r Row) string { return r.Group }},
	{"Venue", 40, func(r Row) string { return r.Venue }},
	{"Mode", 20, func(r Row) string { return r.Mode }},
	{"Session", 49, func(r Row) string { return r.SessionID }},
}
