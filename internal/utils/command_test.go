package utils

import "testing"

/**
 * Test template expansion of a provider command line
 * @param {*testing.T} t - Testing framework instance
 */
func TestGetCommandLine(t *testing.T) {
	data := struct {
		LocalPort int
		Subdomain string
	}{LocalPort: 8080, Subdomain: "myapp"}

	cmd, args, err := GetCommandLine("mytunnel", []string{"--port", "{{.LocalPort}}", "--subdomain", "{{.Subdomain}}"}, data)
	if err != nil {
		t.Fatalf("GetCommandLine failed: %v", err)
	}
	if cmd != "mytunnel" {
		t.Errorf("Expected command mytunnel, got %s", cmd)
	}
	want := []string{"--port", "8080", "--subdomain", "myapp"}
	if len(args) != len(want) {
		t.Fatalf("Got %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("Arg %d: got %s, want %s", i, args[i], want[i])
		}
	}
}

/**
 * Test that a malformed template is rejected
 * @param {*testing.T} t - Testing framework instance
 */
func TestGetCommandLineBadTemplate(t *testing.T) {
	if _, _, err := GetCommandLine("{{.Broken", nil, nil); err == nil {
		t.Error("Malformed template should fail")
	}
}
