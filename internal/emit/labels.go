package emit

import "fmt"

// Labels generates unique local label names for loops. A generator is shared
// by all emitters of a part.
type Labels struct {
	prefix string
	next   int
}

// NewLabels returns a generator for labels with the given prefix.
func NewLabels(prefix string) *Labels {
	return &Labels{prefix: prefix}
}

// Next returns a new label name.
func (l *Labels) Next(kind string) string {
	name := fmt.Sprintf("%s_%s_%d", l.prefix, kind, l.next)
	l.next++
	return name
}
