package flex

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilterAccepts(t *testing.T) {
	f, err := NewFilterFromString(`
function accept_way(tags)
    return tags["highway"] == "residential" and tags["access"] ~= "private"
end
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	tests := []struct {
		name string
		tags map[string]string
		want bool
	}{
		{
			name: "residential accepted",
			tags: map[string]string{"highway": "residential"},
			want: true,
		},
		{
			name: "private access rejected",
			tags: map[string]string{"highway": "residential", "access": "private"},
			want: false,
		},
		{
			name: "motorway rejected by this script",
			tags: map[string]string{"highway": "motorway"},
			want: false,
		},
		{
			name: "no tags",
			tags: map[string]string{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Routable(tt.tags); got != tt.want {
				t.Errorf("Routable(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}
}

func TestFilterMissingFunction(t *testing.T) {
	if _, err := NewFilterFromString(`x = 1`); err == nil {
		t.Fatal("expected error when accept_way is missing")
	}
}

func TestFilterScriptError(t *testing.T) {
	f, err := NewFilterFromString(`
function accept_way(tags)
    error("boom")
end
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	// A runtime error rejects the way instead of panicking the build
	if f.Routable(map[string]string{"highway": "residential"}) {
		t.Error("erroring script must reject the way")
	}
}

func TestFilterFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.lua")
	script := `
function accept_way(tags)
    return tags["highway"] ~= nil
end
`
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := NewFilter(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	if !f.Routable(map[string]string{"highway": "service"}) {
		t.Error("expected any highway accepted by this script")
	}
}
