package main

import (
	"fmt"
	"os"

	urlfilter "github.com/always-cache/transform-cache/pkg/url-filter"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port int `yaml:"port"`
	// URL of the origin server to proxy to.
	Origin string `yaml:"origin"`
	// Hostname to use for origin requests and TLS negotiation.
	Host string `yaml:"host"`
	// Directory to serve instead of proxying.
	Dir string `yaml:"dir"`
	// Root that URLs are resolved against. Defaults to the origin or directory.
	Root     string `yaml:"root"`
	Debug    bool   `yaml:"debug"`
	Provider string `yaml:"provider"`
	LogFile  string `yaml:"logFile"`
	// URLs to transform. All URLs are transformed if empty.
	Filter    urlfilter.Rules `yaml:"filter"`
	Transform TransformConfig `yaml:"transform"`
	Files     FilesConfig     `yaml:"files"`
}

type TransformConfig struct {
	StaticDir    string `yaml:"staticDir"`
	CacheControl string `yaml:"cacheControl"`
	Marker       string `yaml:"marker"`
}

// FilesConfig applies to serving a directory.
type FilesConfig struct {
	CacheControl string `yaml:"cacheControl"`
	// Purge stored documents when their files change.
	Watch bool `yaml:"watch"`
}

const (
	providerMemory = "memory"
	providerSQLite = "sqlite"
)

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

// complete fills in defaults and checks the config.
func (c *Config) complete() error {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Provider == "" {
		c.Provider = providerMemory
	}
	if c.Provider != providerMemory && c.Provider != providerSQLite {
		return fmt.Errorf("Unknown provider %q", c.Provider)
	}
	if (c.Origin == "") == (c.Dir == "") {
		return fmt.Errorf("Need exactly one of origin and dir")
	}
	if c.Root == "" {
		c.Root = c.Origin + c.Dir
	}
	if c.Files.Watch && c.Dir == "" {
		return fmt.Errorf("Watching needs dir")
	}
	return nil
}
