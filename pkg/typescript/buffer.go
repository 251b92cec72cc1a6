package typescript

import "strings"

// buffer is an append-only list of text fragments. The only edit it allows is
// collapsing blank lines at the end of the most recent fragment.
type buffer struct {
	fragments []string
}

func (b *buffer) push(fragments ...string) {
	b.fragments = append(b.fragments, fragments...)
}

// collapseTrailingBlankLines rewrites a run of two or more trailing newlines in
// the last fragment to a single one.
func (b *buffer) collapseTrailingBlankLines() {
	if len(b.fragments) == 0 {
		return
	}
	last := b.fragments[len(b.fragments)-1]
	trimmed := strings.TrimRight(last, "\n")
	if len(last)-len(trimmed) >= 2 {
		b.fragments[len(b.fragments)-1] = trimmed + "\n"
	}
}

func (b *buffer) String() string {
	return strings.Join(b.fragments, "")
}
