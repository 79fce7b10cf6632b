package archive

import "testing"

func TestExcludeSet(t *testing.T) {
	set := compileExcludes([]string{
		"**/private/**",
		"**/*.pem",
		"node_modules/",
		"./.env",
		"  ",
	})
	if len(set) != 4 {
		t.Fatalf("expected blank glob to be dropped, got %d globs", len(set))
	}

	cases := map[string]bool{
		"src/private/token.txt":          true,
		"tls/server.pem":                 true,
		"node_modules/left-pad/index.js": true,
		".env":                           true,
		"src/public/readme.md":           false,
		"config/.env.example":            false,
		"":                               false,
	}
	for rel, want := range cases {
		if got := set.excluded(rel); got != want {
			t.Errorf("excluded(%q) = %v, want %v", rel, got, want)
		}
	}

	if !set.skipDir("node_modules") {
		t.Error("expected node_modules/ glob to prune the directory")
	}
	if set.skipDir("src") {
		t.Error("src should not be pruned")
	}
}

func TestSafeMemberName(t *testing.T) {
	cases := map[string]bool{
		"a/b.txt":       true,
		"deep/file.go":  true,
		"notes...md":    true,
		"v1..2.txt":     true,
		"dir..x/a.go":   true,
		"../escape.txt": false,
		"a/../../b":     false,
		"a/..":          false,
		"/etc/passwd":   false,
		"":              false,
	}
	for in, want := range cases {
		if got := safeMemberName(in); got != want {
			t.Errorf("safeMemberName(%q) = %v, want %v", in, got, want)
		}
	}
}
