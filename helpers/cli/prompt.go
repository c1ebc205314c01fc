// Package cli runs line commands from terminal prompt or piped stdin.
package cli

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
)

type ExecFunc func(line string) error

// MainLoop reads commands until EOF. On terminal, errors are reported by
// onError and loop continues; piped input stops at first error.
func MainLoop(tag string, in *os.File, exec ExecFunc, complete prompt.Completer, onError func(error)) error {
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		prompt.New(
			func(line string) {
				if err := exec(strings.TrimSpace(line)); err != nil {
					onError(err)
				}
			},
			complete,
			prompt.OptionTitle(tag),
			prompt.OptionPrefix(tag+"> "),
		).Run()
		return nil
	}
	return RunLines(in, exec)
}

// RunLines skips empty and # comment lines.
func RunLines(r io.Reader, exec ExecFunc) error {
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := exec(line); err != nil {
			return errors.Annotatef(err, "line=%d", n)
		}
	}
	return scanner.Err()
}
