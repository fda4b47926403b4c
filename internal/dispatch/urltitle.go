package dispatch

import (
	"bytes"
	"context"
	"io"
	"strings"

	"golang.org/x/net/html"

	"relaybot/internal/domain"
	"relaybot/internal/fetch"
)

const maxTitleFetchBytes = 2 << 20 // 2MB

// handleURLTitles fetches every URL in a message and replies with its page
// title. Anything that is not smallish HTML is silently skipped.
func (d *Dispatcher) handleURLTitles(ctx context.Context, source domain.ChannelRef, text string) {
	for _, url := range urlPattern.FindAllString(text, -1) {
		if title := d.titleForURL(ctx, url); title != "" {
			d.say(source, "Title: "+title)
		}
	}
}

func (d *Dispatcher) titleForURL(ctx context.Context, url string) string {
	resp, err := fetch.Get(ctx, url)
	if err != nil {
		d.logger.Debug("could not get url", "url", url, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/html") {
		return ""
	}
	if resp.ContentLength > maxTitleFetchBytes {
		d.logger.Debug("content too large, not fetching", "url", url, "length", resp.ContentLength)
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTitleFetchBytes))
	if err != nil {
		return ""
	}

	return extractTitle(body)
}

// extractTitle prefers og:title over the title tag, the way link previews do.
func extractTitle(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var ogTitle, titleTag string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				var prop, content string
				for _, a := range n.Attr {
					switch a.Key {
					case "property":
						prop = a.Val
					case "content":
						content = a.Val
					}
				}
				if prop == "og:title" && content != "" {
					ogTitle = content
				}
			case "title":
				if titleTag == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					titleTag = n.FirstChild.Data
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	title := ogTitle
	if title == "" {
		title = titleTag
	}

	replacer := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")
	return strings.TrimSpace(replacer.Replace(title))
}
