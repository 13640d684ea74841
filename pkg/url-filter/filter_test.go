package urlfilter

import (
	"net/url"
	"testing"

	"gopkg.in/yaml.v3"
)

func mustURL(s string) *url.URL {
	u, err := url.Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

func TestRuleFinder(t *testing.T) {
	rules := Rules{
		Rule{Prefix: "/docs/", Query: map[string]string{"lang": "fi"}},
		Rule{Path: "/"},
	}

	if !rules.Match(mustURL("/")) {
		t.Fatal("Root not matched")
	}
	if !rules.Match(mustURL("/docs/intro.html?lang=fi")) {
		t.Fatal("Prefix with query not matched")
	}
	if rules.Match(mustURL("/docs/intro.html?lang=sv")) {
		t.Fatal("Wrong query matched")
	}
	if rules.Match(mustURL("/about.html")) {
		t.Fatal("Unrelated path matched")
	}
}

func TestConstructors(t *testing.T) {
	if !Exact("/a").Match(mustURL("/a")) || Exact("/a").Match(mustURL("/a/b")) {
		t.Fatal("Exact")
	}
	if !List("/a", "/b").Match(mustURL("/b")) || List("/a", "/b").Match(mustURL("/c")) {
		t.Fatal("List")
	}
	if !Prefix("/a").Match(mustURL("/a/b")) {
		t.Fatal("Prefix")
	}
	p, err := Pattern(`\.html$`)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Match(mustURL("/x/index.html")) || p.Match(mustURL("/x/style.css")) {
		t.Fatal("Pattern")
	}
	if _, err := Pattern("("); err == nil {
		t.Fatal("Invalid pattern compiled")
	}
	if (Rules{}).Match(mustURL("/")) {
		t.Fatal("Empty rules matched")
	}
}

func TestUncompiledPattern(t *testing.T) {
	rules := Rules{{Pattern: "^/blog/"}}
	if !rules.Match(mustURL("/blog/post")) {
		t.Fatal("Uncompiled pattern did not match")
	}
}

func TestYAML(t *testing.T) {
	var cfg struct {
		Single Rules `yaml:"single"`
		List   Rules `yaml:"list"`
		Rule   Rules `yaml:"rule"`
		Mixed  Rules `yaml:"mixed"`
	}
	doc := `
single: /index.html
list: [/, /about.html]
rule:
  pattern: "\\.html$"
mixed:
  - /
  - prefix: /docs/
`
	if err := yaml.Unmarshal([]byte(doc), &cfg); err != nil {
		t.Fatal(err)
	}
	if !cfg.Single.Match(mustURL("/index.html")) || cfg.Single.Match(mustURL("/")) {
		t.Fatalf("Single is %+v", cfg.Single)
	}
	if len(cfg.List) != 2 || !cfg.List.Match(mustURL("/about.html")) {
		t.Fatalf("List is %+v", cfg.List)
	}
	if !cfg.Rule.Match(mustURL("/a/b.html")) || cfg.Rule[0].re == nil {
		t.Fatalf("Rule is %+v", cfg.Rule)
	}
	if !cfg.Mixed.Match(mustURL("/docs/x")) || !cfg.Mixed.Match(mustURL("/")) {
		t.Fatalf("Mixed is %+v", cfg.Mixed)
	}

	var bad struct {
		F Rules `yaml:"f"`
	}
	if err := yaml.Unmarshal([]byte(`f: {pattern: "("}`), &bad); err == nil {
		t.Fatal("Invalid pattern accepted")
	}
}
