package annotate

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/japaniel/enx/pkg/familiarity"
)

func rec(key string, count int) *familiarity.WordRecord {
	return &familiarity.WordRecord{Key: key, LookupCount: count}
}

func countSpans(t *testing.T, markup string) []*html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var spans []*html.Node
	for n := range Spans(doc) {
		spans = append(spans, n)
	}
	return spans
}

func TestRenderContractionsAndPunctuation(t *testing.T) {
	dict := Dictionary{"their": rec("their", 1), "to": rec("to", 0)}
	got := Render("their 6-year-old to!", dict)
	want := `<u class="enx-word enx-their" data-word="their" style="text-decoration: hsl(10, 100%, 40%) underline; text-decoration-thickness: 2px;" data-enx="1">their</u>` +
		` 6-year-old ` +
		`<u class="enx-word enx-to" data-word="to" style="text-decoration: #FFFFFF underline; text-decoration-thickness: 2px;" data-enx="1">to</u>!`
	if got != want {
		t.Fatalf("unexpected markup:\n got: %s\nwant: %s", got, want)
	}
}

func TestRenderKeepsTrailingPunctuationOutside(t *testing.T) {
	dict := Dictionary{"assassins": rec("assassins", 3), "doors": rec("doors", 2)}
	in := "scientists. (Assassins wove ... their car doors.) The"
	got := Render(in, dict)

	if n := len(countSpans(t, got)); n != 2 {
		t.Fatalf("expected 2 spans, got %d in %s", n, got)
	}
	if !strings.Contains(got, `>doors</u>.)`) {
		t.Fatalf("punctuation moved into span: %s", got)
	}
	if !strings.Contains(got, `(<u class="enx-word enx-assassins" data-word="Assassins"`) {
		t.Fatalf("expected surface casing in data-word: %s", got)
	}
}

func TestRenderSkipsLinks(t *testing.T) {
	in := `<p>Hosted on <a href="https://gitlab.com">GitLab</a></p>`
	dict := Dictionary{"GitLab": {Key: "gitlab", LookupCount: 4, Acquainted: true}}
	if got := Render(in, dict); got != in {
		t.Fatalf("expected byte-identical output, got %s", got)
	}
}

func TestRenderNoSelfInterference(t *testing.T) {
	dict := Dictionary{"GitHub": rec("github", 2), "data": rec("data", 5)}
	got := Render("GitHub data processing", dict)

	spans := countSpans(t, got)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d in %s", len(spans), got)
	}
	var words []string
	for _, s := range spans {
		w, _ := attrValue(s.Attr, "data-word")
		words = append(words, w)
		for c := s.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.TextNode {
				t.Fatalf("span %q has nested markup", w)
			}
		}
	}
	if strings.Join(words, ",") != "GitHub,data" {
		t.Fatalf("unexpected data-word values %v", words)
	}
}

func TestRenderSanitizesClassButNotSurface(t *testing.T) {
	got := Render("I don't know", Dictionary{"don't": rec("don't", 1)})
	if !strings.Contains(got, `class="enx-word enx-dont"`) {
		t.Fatalf("class not sanitized: %s", got)
	}
	if !strings.Contains(got, `data-word="don&#39;t"`) || !strings.Contains(got, `>don't</u>`) {
		t.Fatalf("surface text altered: %s", got)
	}
}

func TestRenderIsCaseInsensitive(t *testing.T) {
	got := Render("GITHUB and GitHub", Dictionary{"github": rec("github", 1)})
	if !strings.Contains(got, `data-word="GITHUB"`) || !strings.Contains(got, `data-word="GitHub"`) {
		t.Fatalf("expected both casings kept: %s", got)
	}
}

func TestRenderToleratesMalformedRecords(t *testing.T) {
	got := Render("a cat sat", Dictionary{"cat": nil, "": rec("", 3), "x1": rec("x1", 1)})
	if n := len(countSpans(t, got)); n != 1 {
		t.Fatalf("expected one neutral span, got %d: %s", n, got)
	}
	if !strings.Contains(got, familiarity.NeutralColor) {
		t.Fatalf("nil record should render neutral: %s", got)
	}
}

func TestRenderLeavesEntitiesAlone(t *testing.T) {
	in := `<p>AT&amp;T and &nbsp;amp</p>`
	got := Render(in, Dictionary{"amp": rec("amp", 1), "t": rec("t", 1), "nbsp": rec("nbsp", 1)})
	if strings.Contains(got, `data-word="nbsp"`) {
		t.Fatalf("matched inside an entity: %s", got)
	}
	if !strings.Contains(got, `&amp;<u class="enx-word enx-t" data-word="T"`) {
		t.Fatalf("word after entity not annotated: %s", got)
	}
	if !strings.Contains(got, `&nbsp;<u class="enx-word enx-amp"`) {
		t.Fatalf("word after nbsp not annotated: %s", got)
	}
	if Strip(got) != in {
		t.Fatalf("strip did not restore input: %s", Strip(got))
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	dict := Dictionary{"alpha": rec("alpha", 1)}
	once := Render("<p>alpha beta</p>", dict)
	if twice := Render(once, dict); twice != once {
		t.Fatalf("second render changed markup:\n%s\n%s", once, twice)
	}
}

func TestRenderPreservesWhitespace(t *testing.T) {
	in := "alpha \n\t beta\u00a0gamma  alpha"
	dict := Dictionary{"alpha": rec("alpha", 1), "beta": rec("beta", 2), "gamma": rec("gamma", 3)}
	got := Render(in, dict)

	doc, err := html.Parse(strings.NewReader(got))
	if err != nil {
		t.Fatal(err)
	}
	body := findElement(doc, "body")
	if text := textContent(body); text != in {
		t.Fatalf("whitespace changed: %q vs %q", text, in)
	}
}

func TestRenderFlexFixRoundTrip(t *testing.T) {
	in := `<DIV Style="display:inline-flex;color:red"><span>alpha</span> <span>beta</span></DIV>`
	got := Render(in, Dictionary{"alpha": rec("alpha", 1), "beta": rec("beta", 1)})
	if !strings.Contains(got, `style="color:red; display: inline !important"`) {
		t.Fatalf("flex container not forced inline: %s", got)
	}
	if strings.Count(got, attrRawTag) != 1 {
		t.Fatalf("expected one rewritten tag: %s", got)
	}
	if back := Strip(got); back != in {
		t.Fatalf("strip mismatch:\n got: %s\nwant: %s", back, in)
	}
}

func TestStripRenderRoundTrip(t *testing.T) {
	dict := Dictionary{
		"the": {Key: "the", Class: familiarity.ClassFunctional},
		"data": rec("data", 4), "GitHub": rec("github", 1), "quick": rec("quick", 30),
		"don't": rec("don't", 2), "year-old": rec("year-old", 1),
	}
	inputs := []string{
		"",
		"   ",
		"The quick brown fox",
		"<!DOCTYPE html><HTML><Body><P CLASS=x>The  Quick\tdata</P></Body></HTML>",
		`<div><script>var data = "quick";</script><p>data &amp; GitHub<br/>don't</p></div>`,
		`<p><!-- the quick --> a 6-year-old <a href="#">quick</a> <textarea>data</textarea></p>`,
		`<span style="display: -webkit-inline-box">the quick</span> <input value="data"> data`,
		"unclosed <b>quick <i>data",
	}
	for _, in := range inputs {
		out := Render(in, dict)
		if back := Strip(out); back != in {
			t.Errorf("round trip failed for %q:\nrendered: %s\nstripped: %s", in, out, back)
		}
	}
}

func TestStripWithoutSpansIsIdentity(t *testing.T) {
	in := `<p class="x">Nothing <u>here</u></p>`
	if got := Strip(in); got != in {
		t.Fatalf("strip altered markup: %s", got)
	}
}

func TestStripKeepsForeignSpans(t *testing.T) {
	in := `<div>a data <u class="enx-word">data</u> <u class="enx-word enx-data" data-word="data">x</u></div>`
	if got := Strip(in); got != in {
		t.Fatalf("strip removed spans it did not write:\n got: %s\nwant: %s", got, in)
	}
	out := Render(in, Dictionary{"data": rec("data", 1)})
	if n := strings.Count(out, `data-enx="1"`); n != 1 {
		t.Fatalf("expected one generated span, got %d: %s", n, out)
	}
	if back := Strip(out); back != in {
		t.Fatalf("round trip failed:\n got: %s\nwant: %s", back, in)
	}
}

func TestRenderSkipsRawTextElements(t *testing.T) {
	dict := Dictionary{"software": rec("software", 1)}
	for _, in := range []string{
		`<xmp>software</xmp>`,
		`<noembed>software</noembed>`,
		`<noframes>software</noframes>`,
		`<plaintext>software`,
	} {
		if got := Render(in, dict); got != in {
			t.Errorf("Render(%q) = %q", in, got)
		}
	}
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findElement(c, name); f != nil {
			return f
		}
	}
	return nil
}
