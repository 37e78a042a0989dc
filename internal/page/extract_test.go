package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCleanText_CollapsesWhitespace(t *testing.T) {
	t.Parallel()

	raw := "First   line\r\n\r\n  Second\tline  \n\n\n"
	got := CleanText(raw)
	if got != "First line\n\nSecond line" {
		t.Fatalf("unexpected cleaned text: %q", got)
	}
}

func TestSplitBlocks(t *testing.T) {
	t.Parallel()

	blocks := SplitBlocks("one\n\ntwo\n\n\n\nthree")
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d: %v", len(blocks), blocks)
	}
	if blocks[1] != "two" {
		t.Fatalf("unexpected block: %q", blocks[1])
	}

	if got := SplitBlocks("   "); got != nil {
		t.Fatalf("blank text must yield no blocks, got %v", got)
	}
}

func TestTagBlocks(t *testing.T) {
	t.Parallel()

	got := TagBlocks([]string{"hello", "world"})
	want := "[0]hello[/0]\n[1]world[/1]"
	if got != want {
		t.Fatalf("unexpected tagged text: %q", got)
	}

	if got := TagBlocks(nil); got != "" {
		t.Fatalf("empty input must yield empty string, got %q", got)
	}
}

func TestParseTaggedBlocks(t *testing.T) {
	t.Parallel()

	originals := []string{"one", "two", "three"}
	reply := "[0]uno[/0]\n[2]tres[/2]\n[9]fuera[/9]"

	got := ParseTaggedBlocks(reply, originals)
	if got[0] != "uno" || got[2] != "tres" {
		t.Fatalf("translated blocks not applied: %v", got)
	}
	// The dropped block keeps its original text.
	if got[1] != "two" {
		t.Fatalf("missing block must keep original text, got %q", got[1])
	}
}

func TestExtractBlocks_PlainText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Paragraph one.\n\nParagraph two."))
	}))
	defer srv.Close()

	blocks, err := NewExtractor(FetchOptions{}).ExtractBlocks(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(blocks) != 2 || blocks[0] != "Paragraph one." {
		t.Fatalf("unexpected blocks: %v", blocks)
	}
}

func TestExtractBlocks_HTML(t *testing.T) {
	t.Parallel()

	const page = `<!DOCTYPE html><html><head><title>Sample</title></head><body>
<article>
<h1>Sample headline for extraction</h1>
<p>The first paragraph carries enough words to count as readable content for the parser.</p>
<p>The second paragraph also carries a reasonable amount of translatable text content.</p>
</article>
</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	blocks, err := NewExtractor(FetchOptions{}).ExtractBlocks(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(blocks) == 0 {
		t.Fatalf("expected at least one block")
	}
	joined := strings.Join(blocks, "\n")
	if !strings.Contains(joined, "first paragraph") {
		t.Fatalf("article text missing from blocks: %q", joined)
	}
}

func TestExtractBlocks_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := NewExtractor(FetchOptions{}).ExtractBlocks(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected an error for a 403 response")
	}
}
