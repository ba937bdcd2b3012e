// Package importer holds the concrete bookmark-export parsers registered
// with the import registry.
package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/PanHywel/TidyMark-sub000/internal/importer"
)

// Netscape parses the classic bookmarks.html export produced by every major
// browser.
type Netscape struct{}

var _ importer.Format = (*Netscape)(nil)

// NewNetscape returns the HTML export parser.
func NewNetscape() *Netscape {
	return &Netscape{}
}

// Name identifies the format inside the registry.
func (n *Netscape) Name() string {
	return "netscape"
}

// Parse extracts every anchor together with the folder path formed by the
// H3 headings of the enclosing definition lists.
func (n *Netscape) Parse(r io.Reader) ([]importer.Entry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse bookmark html: %w", err)
	}

	var entries []importer.Entry
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		// Firefox smart folders use place: URIs; they are queries, not links.
		if href == "" || strings.HasPrefix(href, "place:") {
			return
		}

		title := strings.TrimSpace(a.Text())
		if title == "" {
			title = href
		}

		entries = append(entries, importer.Entry{
			Title: title,
			URL:   href,
			Path:  folderPath(a),
		})
	})

	return entries, nil
}

// folderPath walks the enclosing DL lists outward and collects their folder
// names, returned root-first.
func folderPath(a *goquery.Selection) []string {
	var closestFirst []string
	a.Parents().Filter("dl").Each(func(_ int, dl *goquery.Selection) {
		if name := folderName(dl); name != "" {
			closestFirst = append(closestFirst, name)
		}
	})

	path := make([]string, 0, len(closestFirst))
	for i := len(closestFirst) - 1; i >= 0; i-- {
		path = append(path, closestFirst[i])
	}
	return path
}

// folderName finds the H3 heading belonging to a DL. Exports either nest the
// DL inside the DT that carries the heading or place it as the following
// sibling.
func folderName(dl *goquery.Selection) string {
	if parent := dl.Parent(); parent.Is("dt") {
		if h3 := parent.ChildrenFiltered("h3"); h3.Length() > 0 {
			return strings.TrimSpace(h3.First().Text())
		}
	}
	if h3 := dl.PrevFiltered("dt").ChildrenFiltered("h3"); h3.Length() > 0 {
		return strings.TrimSpace(h3.First().Text())
	}
	if h3 := dl.PrevAllFiltered("dt").First().ChildrenFiltered("h3"); h3.Length() > 0 {
		return strings.TrimSpace(h3.First().Text())
	}
	return ""
}
