package markup

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Doctype is the declaration every rendered document starts with.
const Doctype = "<!DOCTYPE html>"

// Structure summarizes the element layout of an HTML document.
type Structure struct {
	HasDoctype bool
	HasHTML    bool
	HasHead    bool
	HasBody    bool
	Title      string
	Elements   int
}

// Inspect tokenizes content and reports which document-level elements appear.
// It never fails: tokenizer errors other than EOF stop the scan early.
func Inspect(content string) Structure {
	var s Structure
	z := html.NewTokenizer(strings.NewReader(content))
	inTitle := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if !errors.Is(z.Err(), io.EOF) {
				return s
			}
			s.Title = strings.TrimSpace(s.Title)
			return s
		case html.DoctypeToken:
			s.HasDoctype = true
		case html.StartTagToken, html.SelfClosingTagToken:
			s.Elements++
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Html:
				s.HasHTML = true
			case atom.Head:
				s.HasHead = true
			case atom.Body:
				s.HasBody = true
			case atom.Title:
				inTitle = tt == html.StartTagToken
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Title {
				inTitle = false
			}
		case html.TextToken:
			if inTitle {
				s.Title += string(z.Text())
			}
		}
	}
}

// HasElements reports whether content contains at least one HTML element.
func HasElements(content string) bool {
	return Inspect(content).Elements > 0
}

// WrapFragment parses an HTML fragment in body context and renders it as a
// complete document with a doctype, head and body.
func WrapFragment(fragment string) (string, error) {
	bodyContext := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Body,
		Data:     "body",
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), bodyContext)
	if err != nil {
		return "", err
	}

	doc := &html.Node{Type: html.DocumentNode}
	root := &html.Node{Type: html.ElementNode, DataAtom: atom.Html, Data: "html"}
	head := &html.Node{Type: html.ElementNode, DataAtom: atom.Head, Data: "head"}
	body := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	head.AppendChild(&html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Meta,
		Data:     "meta",
		Attr:     []html.Attribute{{Key: "charset", Val: "utf-8"}},
	})
	doc.AppendChild(root)
	root.AppendChild(head)
	root.AppendChild(body)
	for _, n := range nodes {
		body.AppendChild(n)
	}

	var buf strings.Builder
	buf.WriteString(Doctype)
	buf.WriteString("\n")
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
