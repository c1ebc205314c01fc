package cli

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunLines(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		input  string
		expect []string
		err    string
	}{
		{"empty", "", nil, ""},
		{"skip", "\n  # comment\n\t\n", nil, ""},
		{"trim", "  query ff \nschema", []string{"query ff", "schema"}, ""},
		{"stop", "a\nfail\nb\n", []string{"a", "fail"}, "line=2: bad command"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			err := RunLines(strings.NewReader(c.input), func(line string) error {
				got = append(got, line)
				if line == "fail" {
					return fmt.Errorf("bad command")
				}
				return nil
			})
			assert.Equal(t, c.expect, got)
			if c.err == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, c.err)
			}
		})
	}
}
