// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue/errors"
)

// FormatError flattens a CUE error into "<file>: <path>: <message>" lines,
// where path uses JSON notation ("registry.timeout", "imports[0]").
func FormatError(err error, filename string) error {
	if err == nil {
		return nil
	}

	list := errors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", filename, err)
	}

	lines := make([]string, 0, len(list))
	for _, e := range list {
		p := jsonPath(errors.Path(e))
		msg := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(e.Error(), p), ":"))
		if p == "" {
			lines = append(lines, msg)
			continue
		}
		lines = append(lines, p+": "+msg)
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filename, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filename, strings.Join(lines, "\n  "))
}

func jsonPath(parts []string) string {
	var b strings.Builder
	for i, part := range parts {
		if _, err := strconv.Atoi(part); err == nil && i > 0 {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
