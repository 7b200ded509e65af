package search

import (
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
		desc     string
	}{
		{"https://www.Salesforce.com/sales/pricing/", "https://salesforce.com/sales/pricing", false, "www and trailing slash"},
		{"https://hubspot.com/pricing?utm_source=x&plan=pro#top", "https://hubspot.com/pricing?plan=pro", false, "tracking and fragment"},
		{"HTTP://Example.com:80/a", "https://example.com/a", false, "default port"},
		{"http://x.com/pricing", "https://x.com/pricing", false, "http upgraded to https"},
		{"http://localhost:8080/a", "http://localhost:8080/a", false, "http kept on custom port"},
		{"https://example.com:8443/a", "https://example.com:8443/a", false, "custom port kept"},
		{"ftp://example.com/file", "", true, "unsupported scheme"},
		{"/relative/path", "", true, "missing host"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := NormalizeURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeURL_SchemeVariantsShareKey(t *testing.T) {
	plain, err := NormalizeURL("http://www.x.com/pricing/")
	if err != nil {
		t.Fatal(err)
	}
	secure, err := NormalizeURL("https://x.com/pricing")
	if err != nil {
		t.Fatal(err)
	}
	if plain != secure {
		t.Errorf("expected one key for both schemes, got %q and %q", plain, secure)
	}
}

func TestDomainOf(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://blog.hubspot.com/sales/crm", "hubspot.com"},
		{"https://www.bbc.co.uk/news", "bbc.co.uk"},
		{"aws.amazon.com", "amazon.com"},
		{"https://example.com:8443/", "example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DomainOf(tt.input); got != tt.expected {
			t.Errorf("DomainOf(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSanitize(t *testing.T) {
	raw := []Result{
		{URL: "https://www.g2.com/categories/crm", Title: " Best CRM "},
		{URL: "https://g2.com/categories/crm/", Title: "duplicate"},
		{URL: "https://www.salesforce.com/", Title: "homepage"},
		{URL: "https://www.linkedin.com/in/jordan-lee", Title: "person"},
		{URL: "https://twitter.com/someone", Title: "person"},
		{URL: "mailto:sales@example.com", Title: "mail"},
		{URL: "https://www.capterra.com/customer-relationship-management-software/", Title: "Capterra"},
	}

	got := Sanitize(raw, "brave", false)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}
	if got[0].Title != "Best CRM" || got[0].Domain != "g2.com" || got[0].Source != "brave" {
		t.Errorf("unexpected first candidate %+v", got[0])
	}
	if got[1].Domain != "capterra.com" {
		t.Errorf("unexpected second candidate %+v", got[1])
	}
}
