package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrUnparseable means a body was neither result JSON nor HTML with result
// tables.
var ErrUnparseable = errors.New("no results in response")

type jsonResult struct {
	Constituency string          `json:"constituency"`
	Candidate    string          `json:"candidate"`
	Votes        json.RawMessage `json:"votes"`
	SourceURL    string          `json:"source_url"`
}

// ParseResults reads a results body. JSON is tried first, either
// {"results":[...]} or a bare array; anything else is parsed as HTML.
func ParseResults(body []byte, pageURL string, fetchedAt time.Time) ([]Candidate, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if rows, ok := decodeJSONResults(trimmed); ok {
		return fromJSON(rows, pageURL, fetchedAt), nil
	}
	return parseHTMLTables(trimmed, pageURL, fetchedAt)
}

func decodeJSONResults(body []byte) ([]jsonResult, bool) {
	switch body[0] {
	case '{':
		var wrapped struct {
			Results *[]jsonResult `json:"results"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.Results == nil {
			return nil, false
		}
		return *wrapped.Results, true
	case '[':
		var rows []jsonResult
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, false
		}
		return rows, true
	}
	return nil, false
}

func fromJSON(rows []jsonResult, pageURL string, fetchedAt time.Time) []Candidate {
	out := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		votes, err := parseVotes(string(row.Votes))
		if err != nil || strings.TrimSpace(row.Candidate) == "" {
			continue
		}
		src := row.SourceURL
		if src == "" {
			src = pageURL
		}
		out = append(out, Candidate{
			ConstituencyName: strings.TrimSpace(row.Constituency),
			CandidateName:    strings.TrimSpace(row.Candidate),
			Votes:            votes,
			SourceURL:        src,
			FetchedAt:        fetchedAt,
			Verified:         true,
		})
	}
	return out
}

// parseVotes accepts 1200, "1200" and "1,200".
func parseVotes(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"`)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, errors.New("empty vote count")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse votes %q: %w", raw, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative vote count %d", n)
	}
	return n, nil
}

// parseHTMLTables reads every table whose class mentions "result". The
// first row of each table is a header; rows need constituency, candidate
// and votes cells, and malformed rows are skipped.
func parseHTMLTables(body []byte, pageURL string, fetchedAt time.Time) ([]Candidate, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	tables := findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Table && classContains(n, "result")
	})
	if len(tables) == 0 {
		return nil, ErrUnparseable
	}

	var out []Candidate
	for _, table := range tables {
		rows := findAll(table, func(n *html.Node) bool { return n.DataAtom == atom.Tr })
		for _, row := range rows[min(1, len(rows)):] {
			cells := findAll(row, func(n *html.Node) bool {
				return n.DataAtom == atom.Td || n.DataAtom == atom.Th
			})
			if len(cells) < 3 {
				continue
			}
			votes, err := parseVotes(textOf(cells[2]))
			if err != nil {
				continue
			}
			name := textOf(cells[1])
			if name == "" {
				continue
			}
			out = append(out, Candidate{
				ConstituencyName: textOf(cells[0]),
				CandidateName:    name,
				Votes:            votes,
				SourceURL:        pageURL,
				FetchedAt:        fetchedAt,
				Verified:         true,
			})
		}
	}
	return out, nil
}

// findAll returns matching descendants of root in document order.
func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func classContains(n *html.Node, substr string) bool {
	return strings.Contains(strings.ToLower(attr(n, "class")), substr)
}

// textOf returns the node's text with whitespace collapsed.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
