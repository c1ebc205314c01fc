// Interactive client: push readings to ingest, query serve endpoint.
package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/wxrelay/cmd/wxhub/subcmd"
	"github.com/temoto/wxrelay/helpers/cli"
	"github.com/temoto/wxrelay/internal/config"
	"github.com/temoto/wxrelay/internal/hub"
	"github.com/temoto/wxrelay/log2"
	"github.com/temoto/wxrelay/wxproto"
)

const modName = "cli"

const usage = `syntax: one command per line
- push KIND=V[,V...]...  send sections to ingest, e.g. push thp=21.5,45.5,101325 co2=612
- push @XX...            send header and sections from hex
- query [MASK]           request hex MASK (default ff) from serve, show response
- schema                 show category bits

(meta)
- log=yes  enable debug logging
- log=no   disable debug logging
`

var Mod = subcmd.Mod{Name: modName, Usage: "push/query client, reads commands from stdin", Main: Main}

func Main(ctx context.Context, log *log2.Log, cfg *config.Config, args []string) error {
	e, err := newExecutor(ctx, log, cfg, os.Stdout)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return e.exec(strings.Join(args, " "))
	}
	return cli.MainLoop("wxhub", os.Stdin, e.exec, newCompleter(), func(err error) {
		log.Error(err)
	})
}

type executor struct {
	ctx     context.Context
	ingest  string
	log     *log2.Log
	out     io.Writer
	schema  *wxproto.Schema
	serve   string
	timeout time.Duration
}

func newExecutor(ctx context.Context, log *log2.Log, cfg *config.Config, out io.Writer) (*executor, error) {
	schema, err := cfg.Schema()
	if err != nil {
		return nil, err
	}
	e := &executor{
		ctx:     ctx,
		log:     log,
		out:     out,
		schema:  schema,
		timeout: wxproto.DefaultNetworkTimeout,
	}
	if e.ingest, err = dialAddr(cfg.Hub.IngestListen, hub.DefaultIngestURL); err != nil {
		return nil, errors.Annotate(err, "ingest")
	}
	if e.serve, err = dialAddr(cfg.Hub.ServeListen, hub.DefaultServeURL); err != nil {
		return nil, errors.Annotate(err, "serve")
	}
	return e, nil
}

func (e *executor) exec(line string) error {
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil
	}
	switch cmd, rest := words[0], words[1:]; cmd {
	case "help":
		_, err := io.WriteString(e.out, usage)
		return err
	case "log=yes":
		e.log.SetLevel(log2.LDebug)
		return nil
	case "log=no":
		e.log.SetLevel(log2.LError)
		return nil
	case "schema":
		for _, entry := range e.schema.Entries() {
			fmt.Fprintf(e.out, "bit=%d kind=%s width=%d\n", entry.Bit, entry.Kind, entry.Width)
		}
		return nil
	case "push":
		if len(rest) == 0 {
			return errors.NotValidf("push without sections")
		}
		return e.push(rest)
	case "query":
		mask := wxproto.Mask(0xff)
		if len(rest) > 1 {
			return errors.NotValidf("query expects at most one mask")
		}
		if len(rest) == 1 {
			var err error
			if mask, err = parseMask(rest[0]); err != nil {
				return err
			}
		}
		return e.query(mask)
	}
	return errors.Errorf("invalid command: '%s', try help", words[0])
}

func (e *executor) push(words []string) error {
	f, err := parseFrame(e.schema, words)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
	defer cancel()
	e.log.Debugf("push addr=%s frame=%s", e.ingest, f)
	return wxproto.Push(ctx, e.ingest, e.schema, f)
}

func (e *executor) query(mask wxproto.Mask) error {
	ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
	defer cancel()
	e.log.Debugf("query addr=%s mask=%s", e.serve, mask)
	f, err := wxproto.Query(ctx, e.serve, e.schema, mask)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "mask=%s\n", f.Mask)
	for _, entry := range e.schema.Entries() {
		s := f.Values[entry.Bit]
		if !f.Mask.Has(entry.Bit) || s == nil {
			continue
		}
		ms := s.Measurements()
		parts := make([]string, len(ms))
		for i, m := range ms {
			parts[i] = m.String()
		}
		fmt.Fprintf(e.out, "%d %s %s\n", entry.Bit, entry.Kind, strings.Join(parts, " "))
	}
	return nil
}

func newCompleter() prompt.Completer {
	suggests := []prompt.Suggest{
		{Text: "push", Description: "send sections to ingest"},
		{Text: "query", Description: "request mask from serve"},
		{Text: "schema", Description: "show category bits"},
		{Text: "help", Description: "show syntax"},
		{Text: "log=yes", Description: "enable debug logging"},
		{Text: "log=no", Description: "disable debug logging"},
	}
	names := make([]string, 0, len(kindByName))
	for name := range kindByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		suggests = append(suggests, prompt.Suggest{Text: name + "=", Description: kindArgs[kindByName[name]]})
	}

	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterFuzzy(suggests, d.GetWordBeforeCursor(), true)
	}
}
