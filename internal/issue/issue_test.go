// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestValues(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(BuildFailedId) {
		t.Fatalf("Values() returned %d entries, want %d", len(values), BuildFailedId)
	}
	for i, entry := range values {
		if want := Id(i + 1); entry.Id() != want {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, entry.Id(), want)
		}
		if len(entry.DocLinks()) == 0 {
			t.Errorf("issue %d has no doc links", entry.Id())
		}
		if strings.TrimSpace(string(entry.MarkdownMsg())) == "" {
			t.Errorf("issue %d has an empty message", entry.Id())
		}
	}
}

func TestGet_Unknown(t *testing.T) {
	t.Parallel()

	if Get(0) != nil || Get(BuildFailedId+1) != nil {
		t.Error("Get() should return nil for unknown ids")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	rendered, err := Get(ModuleUnresolvedId).Render("notty")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"Import could not be resolved", "esresolve --verbose resolve", "jsr.io/docs/using-packages"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("Render() missing %q:\n%s", want, rendered)
		}
	}
}
