package config

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/net/html"
)

// IDs of the hosting page elements whose text carries the bootstrap
// configuration.
const (
	ServerElementID   = "server"
	RowsElementID     = "rows"
	ColsElementID     = "cols"
	TerminalElementID = "term"
)

// FromPage fetches a hosting page and reads the terminal configuration from
// its server, rows and cols elements. A relative endpoint is resolved
// against the page URL, with http(s) mapped to ws(s).
func FromPage(ctx context.Context, client *http.Client, pageURL string) (Terminal, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Terminal{}, fmt.Errorf("build page request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Terminal{}, fmt.Errorf("fetch page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Terminal{}, fmt.Errorf("fetch page %s: %s", pageURL, resp.Status)
	}

	elements, err := ParsePage(resp.Body)
	if err != nil {
		return Terminal{}, err
	}

	endpoint, err := resolveEndpoint(pageURL, elements.Server)
	if err != nil {
		return Terminal{}, err
	}
	return NewTerminal(endpoint, elements.Rows, elements.Cols)
}

// PageElements holds the raw bootstrap values found in a hosting page.
type PageElements struct {
	Server string
	Rows   int
	Cols   int
}

// ParsePage extracts the bootstrap elements from an HTML document. All three
// elements must be present; rows and cols must be integers.
func ParsePage(r io.Reader) (PageElements, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return PageElements{}, fmt.Errorf("parse page: %w", err)
	}

	wanted := []string{ServerElementID, RowsElementID, ColsElementID}
	found := map[string]string{}
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		id, ok := attr(n, "id")
		if !ok || !lo.Contains(wanted, id) {
			return
		}
		if _, seen := found[id]; !seen {
			found[id] = strings.TrimSpace(textContent(n))
		}
	})

	missing := lo.Filter(wanted, func(id string, _ int) bool {
		_, ok := found[id]
		return !ok
	})
	if len(missing) > 0 {
		return PageElements{}, fmt.Errorf("%w: page is missing elements %s", ErrInvalid, strings.Join(missing, ", "))
	}

	rows, err := strconv.Atoi(found[RowsElementID])
	if err != nil {
		return PageElements{}, fmt.Errorf("%w: rows element %q is not a number", ErrInvalid, found[RowsElementID])
	}
	cols, err := strconv.Atoi(found[ColsElementID])
	if err != nil {
		return PageElements{}, fmt.Errorf("%w: cols element %q is not a number", ErrInvalid, found[ColsElementID])
	}

	return PageElements{Server: found[ServerElementID], Rows: rows, Cols: cols}, nil
}

func resolveEndpoint(pageURL, server string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: page URL %q: %v", ErrInvalid, pageURL, err)
	}
	ref, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("%w: server element %q: %v", ErrInvalid, server, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	resolved := base.ResolveReference(ref)
	switch resolved.Scheme {
	case "https":
		resolved.Scheme = "wss"
	default:
		resolved.Scheme = "ws"
	}
	return resolved.String(), nil
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}
