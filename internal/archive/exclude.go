package archive

import (
	"path"
	"path/filepath"
	"strings"
)

// excludeSet is a list of slash-separated globs split into segments. A "**"
// segment spans any number of path segments and a trailing "/" drops the
// whole subtree.
type excludeSet [][]string

func compileExcludes(globs []string) excludeSet {
	set := make(excludeSet, 0, len(globs))
	for _, g := range globs {
		g = cleanRel(g)
		if g == "" {
			continue
		}
		if strings.HasSuffix(g, "/") {
			g += "**"
		}
		set = append(set, strings.Split(g, "/"))
	}
	return set
}

// excluded reports whether rel, relative to the archive root, matches any
// glob in the set.
func (s excludeSet) excluded(rel string) bool {
	rel = cleanRel(rel)
	if rel == "" {
		return false
	}
	segs := strings.Split(rel, "/")
	for _, pat := range s {
		if globMatch(pat, segs) {
			return true
		}
	}
	return false
}

// skipDir also tries rel with a trailing slash so "dir/" globs prune the
// directory itself.
func (s excludeSet) skipDir(rel string) bool {
	return s.excluded(rel+"/") || s.excluded(rel)
}

func globMatch(pat, segs []string) bool {
	switch {
	case len(pat) == 0:
		return len(segs) == 0
	case pat[0] == "**":
		for i := 0; i <= len(segs); i++ {
			if globMatch(pat[1:], segs[i:]) {
				return true
			}
		}
		return false
	case len(segs) == 0:
		return false
	}
	if ok, err := path.Match(pat[0], segs[0]); err != nil || !ok {
		return false
	}
	return globMatch(pat[1:], segs[1:])
}

func cleanRel(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}

// safeMemberName reports whether a slash-separated member name stays inside
// the extraction root. Only whole ".." segments climb out; "v1..2.txt" is an
// ordinary name.
func safeMemberName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
