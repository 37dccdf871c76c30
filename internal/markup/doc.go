// Package markup holds the document helpers used to turn model output into a
// printable HTML document:
//   - Markdown to HTML conversion via Goldmark with Chroma highlighting
//   - <style> injection into HTML documents
//   - HTML tokenizing, fragment wrapping and structure inspection (x/net/html)
//
// Nothing here talks to a browser. PDF rendering is handled by the root
// propulse package using headless Chrome (go-rod).
package markup
