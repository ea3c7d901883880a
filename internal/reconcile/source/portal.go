package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxAnnouncements = 10

// Announcement is an election notice found on the commission's site.
type Announcement struct {
	Title     string    `json:"title"`
	SourceURL string    `json:"source_url"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Form is a link to a published result form (34A, 34B, 35, ...).
type Form struct {
	FormType  string    `json:"form_type"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Portal reads the commission's public pages that are not result tables.
type Portal struct {
	client   Fetcher
	baseURL  string
	formsURL string
}

func NewPortal(client Fetcher, baseURL, formsURL string) *Portal {
	return &Portal{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		formsURL: strings.TrimRight(formsURL, "/"),
	}
}

// FetchAnnouncements collects up to ten announcement blocks from the
// election page. A block is an article or div whose class mentions
// "election" or "announcement"; its title is the first heading or link.
func (p *Portal) FetchAnnouncements(ctx context.Context) ([]Announcement, error) {
	page := p.baseURL + "/election/"
	resp, err := p.client.Fetch(ctx, page, nil)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse announcements: %w", err)
	}

	blocks := findAll(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.Article && n.DataAtom != atom.Div {
			return false
		}
		return classContains(n, "election") || classContains(n, "announcement")
	})

	var out []Announcement
	for _, block := range blocks[:min(len(blocks), maxAnnouncements)] {
		titleNode := findFirst(block, func(n *html.Node) bool {
			switch n.DataAtom {
			case atom.H1, atom.H2, atom.H3, atom.A:
				return true
			}
			return false
		})
		if titleNode == nil {
			continue
		}
		title := textOf(titleNode)
		if title == "" {
			continue
		}
		link := attr(titleNode, "href")
		if link == "" {
			if a := findFirst(block, func(n *html.Node) bool { return n.DataAtom == atom.A && attr(n, "href") != "" }); a != nil {
				link = attr(a, "href")
			}
		}
		out = append(out, Announcement{
			Title:     title,
			SourceURL: absolute(resp.URL, link),
			FetchedAt: resp.FetchedAt,
		})
	}
	return out, nil
}

// FetchForms lists result form links on the forms portal.
func (p *Portal) FetchForms(ctx context.Context, formType, electionID string) ([]Form, error) {
	params := url.Values{}
	if formType != "" {
		params.Set("form", formType)
	}
	if electionID != "" {
		params.Set("election", electionID)
	}
	resp, err := p.client.Fetch(ctx, p.formsURL, params)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse forms: %w", err)
	}

	links := findAll(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.A {
			return false
		}
		href := attr(n, "href")
		return strings.Contains(strings.ToLower(href), "form") ||
			strings.Contains(href, "34") ||
			strings.Contains(href, "35")
	})
	out := make([]Form, 0, len(links))
	for _, a := range links {
		target := absolute(p.formsURL+"/", attr(a, "href"))
		out = append(out, Form{
			FormType:  formType,
			Title:     textOf(a),
			URL:       target,
			FetchedAt: resp.FetchedAt,
		})
	}
	return out, nil
}

// absolute resolves link against page; an empty link yields the page.
func absolute(page, link string) string {
	if link == "" {
		return page
	}
	base, err := url.Parse(page)
	if err != nil {
		return link
	}
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}
