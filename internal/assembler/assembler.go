// Package assembler defines the available assembler output formats.
package assembler

const (
	Acme = "acme"
	Ca65 = "ca65"
)

// Names returns the names of all supported assemblers.
func Names() []string {
	return []string{Acme, Ca65}
}
