package search

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// parseResults walks an HTML token stream and extracts up to max results.
// It looks for the result anchor/snippet classes used by HTML search
// pages and tolerates layout noise: anything that does not match is
// skipped, and a truncated stream yields whatever was parsed before the
// cut.
func parseResults(r io.Reader, max int) ([]Result, error) {
	tok := html.NewTokenizer(r)

	var results []Result
	var pending *Result
	state := stateNone

	flush := func() {
		if pending == nil {
			return
		}
		pending.Title = collapseSpace(pending.Title)
		pending.Snippet = collapseSpace(pending.Snippet)
		if pending.Title != "" && pending.URL != "" {
			results = append(results, *pending)
		}
		pending = nil
	}

	for {
		switch tok.Next() {
		case html.ErrorToken:
			flush()
			if err := tok.Err(); err != io.EOF && len(results) == 0 {
				return nil, err
			}
			return results, nil

		case html.StartTagToken:
			t := tok.Token()
			if t.Data != "a" {
				continue
			}
			class := attrValue(t, "class")
			switch {
			case strings.Contains(class, "result__a"):
				flush()
				if len(results) >= max {
					return results, nil
				}
				pending = &Result{URL: cleanResultURL(attrValue(t, "href"))}
				state = stateTitle
			case pending != nil && (strings.Contains(class, "result__snippet") || strings.Contains(class, "result-snippet")):
				state = stateSnippet
			}

		case html.TextToken:
			if pending == nil {
				continue
			}
			text := string(tok.Text())
			switch state {
			case stateTitle:
				pending.Title += text
			case stateSnippet:
				pending.Snippet += text
			}

		case html.EndTagToken:
			t := tok.Token()
			if t.Data == "a" {
				state = stateNone
			}
		}
	}
}

type parseState int

const (
	stateNone parseState = iota
	stateTitle
	stateSnippet
)

func attrValue(t html.Token, name string) string {
	for _, a := range t.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// cleanResultURL unwraps redirect-style hrefs ("/l/?uddg=<target>") and
// normalizes protocol-relative links.
func cleanResultURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
