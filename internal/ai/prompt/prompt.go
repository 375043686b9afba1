// Package prompt builds the interpretation prompt shared by all providers.
package prompt

import (
	"fmt"
	"strings"

	"github.com/rowforge/rowforge/pkg/models"
)

// System returns the system message constraining model output.
func System() string {
	return "You describe tabular data transformations. Be concise and concrete. " +
		"Refer only to the columns you are given. No code, no markdown."
}

// Build renders the interpretation prompt from the table schema and the
// user's instruction.
func Build(req models.InterpretRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A table has these columns, in order: %s.\n\n", strings.Join(req.Columns, ", "))
	fmt.Fprintf(&b, "USER REQUEST: %s\n\n", req.Instruction)
	b.WriteString("Describe, step by step, how the table should be transformed to satisfy the request. " +
		"If the request cannot be satisfied with these columns, say why.")
	return b.String()
}
