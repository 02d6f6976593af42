package dictionary

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const sampleList = `{"words":[{"word":"cat","senses":[{"gloss":["猫"]}]}]}`

func TestEnsureWordListKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.json")
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	// An unreachable URL proves no download is attempted.
	if err := EnsureWordList(context.Background(), path, "http://127.0.0.1:1/words.json"); err != nil {
		t.Fatalf("EnsureWordList with local file: %v", err)
	}
}

func TestEnsureWordListWithoutURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	if err := EnsureWordList(context.Background(), path, ""); err == nil {
		t.Fatal("expected error for a missing file without URL")
	}
}

func TestEnsureWordListDownloads(t *testing.T) {
	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, _ = w.Write([]byte(sampleList))
	_ = w.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plain.json":
			w.Write([]byte(sampleList))
		case "/list.json.gz":
			w.Write(gz.Bytes())
		case "/broken.json":
			w.Write([]byte("not json"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	for _, name := range []string{"plain.json", "list.json.gz"} {
		path := filepath.Join(dir, name+".out")
		if err := EnsureWordList(context.Background(), path, srv.URL+"/"+name); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		entries, err := LoadFile(path)
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		if len(entries) != 1 || entries[0].Word != "cat" {
			t.Errorf("%s: entries = %+v", name, entries)
		}
	}

	for _, name := range []string{"broken.json", "missing.json"} {
		path := filepath.Join(dir, name+".out")
		if err := EnsureWordList(context.Background(), path, srv.URL+"/"+name); err == nil {
			t.Errorf("%s: expected error", name)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s: partial file left behind", name)
		}
	}
}
