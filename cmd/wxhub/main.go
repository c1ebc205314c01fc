package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/temoto/wxrelay/cmd/wxhub/client"
	"github.com/temoto/wxrelay/cmd/wxhub/serve"
	"github.com/temoto/wxrelay/cmd/wxhub/subcmd"
	"github.com/temoto/wxrelay/internal/config"
	"github.com/temoto/wxrelay/log2"
)

var log = log2.NewStderr(log2.LDebug)

var modules = []subcmd.Mod{
	serve.Mod,
	client.Mod,
}

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagConfig := cmdline.String("config", "wxhub.hcl", "")
	cmdline.Usage = func() {
		fmt.Fprintf(cmdline.Output(), "Usage: %s [option] [command]\n\nOptions:\n", os.Args[0])
		cmdline.PrintDefaults()
		fmt.Fprintf(cmdline.Output(), "\nCommands (default serve):\n%s", subcmd.Usage(modules))
	}
	_ = cmdline.Parse(os.Args[1:])

	command := cmdline.Arg(0)
	if command == "" {
		command = serve.Mod.Name
	}
	mod, err := subcmd.Parse(command, modules)
	if err != nil {
		log.Fatal(err)
	}

	if subcmd.SdNotify(log, "start") {
		// under systemd, journal adds timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	cfg := config.MustReadConfig(log, config.NewOsFullReader(), *flagConfig)
	if !cfg.Hub.LogDebug {
		log.SetLevel(log2.LInfo)
	}
	log.Debugf("config=%+v", cfg)

	ctx, cancel := context.WithCancel(context.Background())
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		s := <-sigch
		log.Infof("signal=%v, stopping", s)
		cancel()
	}()

	var args []string
	if cmdline.NArg() > 1 {
		args = cmdline.Args()[1:]
	}
	if err := mod.Main(ctx, log, cfg, args); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	cancel()
}
