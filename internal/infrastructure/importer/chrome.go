package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/PanHywel/TidyMark-sub000/internal/importer"
)

// Chrome parses the Bookmarks JSON file Chromium-based browsers keep in
// their profile directory.
type Chrome struct{}

var _ importer.Format = (*Chrome)(nil)

// NewChrome returns the JSON profile parser.
func NewChrome() *Chrome {
	return &Chrome{}
}

// Name identifies the format inside the registry.
func (c *Chrome) Name() string {
	return "chrome"
}

type chromeNode struct {
	Type     string       `json:"type"`
	Name     string       `json:"name"`
	URL      string       `json:"url"`
	Children []chromeNode `json:"children"`
}

type chromeFile struct {
	Roots map[string]chromeNode `json:"roots"`
}

// Parse walks all roots and collects url nodes with their folder paths. The
// root folders themselves (bookmark_bar etc.) are not part of the path.
func (c *Chrome) Parse(r io.Reader) ([]importer.Entry, error) {
	var file chromeFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("parse chrome bookmarks: %w", err)
	}

	rootNames := make([]string, 0, len(file.Roots))
	for name := range file.Roots {
		rootNames = append(rootNames, name)
	}
	sort.Strings(rootNames)

	var entries []importer.Entry
	var walk func(node chromeNode, path []string)
	walk = func(node chromeNode, path []string) {
		switch node.Type {
		case "url":
			title := node.Name
			if title == "" {
				title = node.URL
			}
			entries = append(entries, importer.Entry{
				Title: title,
				URL:   node.URL,
				Path:  append([]string(nil), path...),
			})
		case "folder":
			for _, child := range node.Children {
				walk(child, append(path, node.Name))
			}
		}
	}

	for _, name := range rootNames {
		root := file.Roots[name]
		for _, child := range root.Children {
			walk(child, nil)
		}
	}

	return entries, nil
}
