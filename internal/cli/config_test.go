package cli

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestConfig_YAMLRoundTrip(t *testing.T) {
	doc := `
default_profile: local
profiles:
  local:
    base_url: http://localhost:8090
    guid: local
    apikey: k
    collection: web
    environment: dev
  prod:
    region: us-south
    guid: g
    apikey: pk
    collection: web
    environment: prod
`
	var cfg Config
	if err := yaml.Unmarshal([]byte(doc), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.DefaultProfile != "local" {
		t.Fatalf("DefaultProfile = %q", cfg.DefaultProfile)
	}
	if got := cfg.Profiles["prod"].Region; got != "us-south" {
		t.Fatalf("prod region = %q", got)
	}
	if got := cfg.Profiles["local"].BaseURL; got != "http://localhost:8090" {
		t.Fatalf("local base_url = %q", got)
	}
}

func TestApplyFlags_Precedence(t *testing.T) {
	p := Profile{Region: "us-south", Guid: "g", APIKey: "file-key", Collection: "web", Environment: "dev"}
	applyFlags(&p, FlagOverrides{APIKey: "flag-key", Environment: "prod"})

	if p.APIKey != "flag-key" {
		t.Fatalf("APIKey = %q, want flag override", p.APIKey)
	}
	if p.Environment != "prod" {
		t.Fatalf("Environment = %q, want flag override", p.Environment)
	}
	if p.Region != "us-south" {
		t.Fatalf("Region = %q, want file value preserved", p.Region)
	}
}
