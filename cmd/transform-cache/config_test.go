package main

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

func TestGetConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yml")
	doc := `
port: 9000
origin: https://example.com
host: www.example.com
debug: true
provider: sqlite
filter:
  - /
  - prefix: /docs/
transform:
  staticDir: assets
  marker: transformed
`
	if err := os.WriteFile(filename, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	config, err := getConfig(filename)
	if err != nil {
		t.Fatal(err)
	}
	if err := config.complete(); err != nil {
		t.Fatal(err)
	}
	if config.Port != 9000 || config.Host != "www.example.com" || !config.Debug || config.Provider != providerSQLite {
		t.Fatalf("Config is %+v", config)
	}
	if config.Root != "https://example.com" {
		t.Fatalf("Root is %s", config.Root)
	}
	if config.Transform.StaticDir != "assets" || config.Transform.Marker != "transformed" {
		t.Fatalf("Transform config is %+v", config.Transform)
	}
	if !config.Filter.Match(&url.URL{Path: "/docs/a.html"}) || config.Filter.Match(&url.URL{Path: "/blog/"}) {
		t.Fatalf("Filter is %+v", config.Filter)
	}
}

func TestMissingConfigFile(t *testing.T) {
	if _, err := getConfig(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("Missing file read")
	}
}

func TestCompleteDefaults(t *testing.T) {
	config := Config{Dir: "/srv/www"}
	if err := config.complete(); err != nil {
		t.Fatal(err)
	}
	if config.Port != 8080 || config.Provider != providerMemory || config.Root != "/srv/www" {
		t.Fatalf("Config is %+v", config)
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := map[string]Config{
		"no origin":        {},
		"origin and dir":   {Origin: "http://a", Dir: "/srv"},
		"unknown provider": {Dir: "/srv", Provider: "redis"},
		"watch origin":     {Origin: "http://a", Files: FilesConfig{Watch: true}},
	}
	for name, config := range tests {
		if err := config.complete(); err == nil {
			t.Errorf("%s: no error", name)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	defer func() {
		dirFlag, portFlag, debugFlag, markerFlag = "", 0, false, ""
	}()
	dirFlag = "/srv/www"
	portFlag = 3000
	debugFlag = true
	markerFlag = "m"

	config := Config{Origin: "http://example.com", Port: 9000}
	applyFlags(&config)

	if config.Dir != "/srv/www" || config.Origin != "" || config.Port != 3000 || !config.Debug || config.Transform.Marker != "m" {
		t.Fatalf("Config is %+v", config)
	}
}
