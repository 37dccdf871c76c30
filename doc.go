// Package propulse generates commercial proposals as PDF documents.
//
// A proposal record is turned into a prompt, sent to a language model,
// reduced to a self-contained HTML document and printed to A4 PDF with
// headless Chrome.
//
// # Quick Start
//
//	completer, err := propulse.NewCompleter(propulse.CompletionConfig{
//	    APIKey:  os.Getenv("OPENROUTER_API_KEY"),
//	    BaseURL: os.Getenv("OPENROUTER_API_BASE"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	renderer := propulse.NewRenderer()
//	exemplar, err := propulse.LoadStyleExemplar("/path/to/install/root")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p, err := propulse.NewPipeline(completer, renderer, exemplar)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	doc, err := p.GenerateFile(ctx, proposal)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer doc.Close()
//	doc.WriteTo(w)
//
// # Pipeline
//
//  1. Prompt construction from the proposal and the style exemplar
//  2. Completion via an OpenAI-compatible or Anthropic endpoint
//  3. HTML extraction (repair, strict or passthrough)
//  4. PDF rendering via go-rod into a temporary file
//  5. Delivery as a streamed file (binary) or base64 payload (inline)
//
// The temporary PDF is deleted exactly once on every path, including
// failures and client disconnects.
//
// # Style Exemplar
//
// LoadStyleExemplar reads templates/base.html under the install root.
// When it is missing the pipeline runs in degraded mode: the prompt asks for
// a design from scratch and generation still succeeds.
//
// # Errors
//
// Request-time failures are returned as *GenerationError, which matches
// ErrGenerationFailed and unwraps to the stage-specific cause:
//
//	var genErr *propulse.GenerationError
//	if errors.As(err, &genErr) {
//	    log.Printf("failed at %s: %v", genErr.Stage, genErr.Cause)
//	}
package propulse
