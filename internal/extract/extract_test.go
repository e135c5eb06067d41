package extract

import (
	"context"
	"strings"
	"testing"
)

func TestFromBytes_PlainText(t *testing.T) {
	data := []byte("line one\n\n\nline two\n")
	got, err := FromBytes(context.Background(), data, "text/plain; charset=utf-8", "report.txt")
	if err != nil {
		t.Fatalf("extract plain text: %v", err)
	}
	if got != "line one\nline two" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestFromBytes_ExtensionFallback(t *testing.T) {
	got, err := FromBytes(context.Background(), []byte("hello"), "application/octet-stream", "notes.txt")
	if err != nil {
		t.Fatalf("expected extension fallback to text, got error: %v", err)
	}
	if got != "hello" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestFromBytes_UnsupportedMime(t *testing.T) {
	_, err := FromBytes(context.Background(), []byte("GIF89a"), "image/gif", "pic.gif")
	if err == nil {
		t.Fatal("expected unsupported mime error")
	}
	if !strings.Contains(err.Error(), "unsupported mime type: image/gif") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFromBytes_EmptyData(t *testing.T) {
	if _, err := FromBytes(context.Background(), nil, "application/pdf", "report.pdf"); err == nil {
		t.Fatal("expected error for empty data")
	}
}
