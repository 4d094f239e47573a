package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/tuannm99/novabuf/internal"
	"github.com/tuannm99/novabuf/internal/bufferpool"
	"github.com/tuannm99/novabuf/internal/shell"
)

const prompt = "novabuf> "

func main() {
	flags := pflag.NewFlagSet("novabuf", pflag.ExitOnError)
	var (
		cfgPath = flags.String("config", "", "config file (yaml)")
		oneShot = flags.StringP("command", "c", "", "run commands separated by ';' and exit")
	)
	flags.String("data-dir", "./data", "directory holding page files")
	flags.Int("num-bufs", bufferpool.DefaultCapacity, "number of buffer frames")
	flags.String("log-level", "info", "debug, info, warn or error")
	_ = flags.Parse(os.Args[1:])

	cfg, v, err := internal.LoadConfig(*cfgPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, level, err := internal.NewLogger(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	if *cfgPath != "" {
		// Only the log level is applied live; the pool size is fixed at start.
		internal.WatchConfig(v, func(next *internal.NovaBufConfig, err error) {
			if err != nil {
				log.Warn("config reload failed", "err", err)
				return
			}
			lvl, err := internal.ParseLevel(next.Log.Level)
			if err != nil {
				log.Warn("config reload failed", "err", err)
				return
			}
			level.Set(lvl)
			log.Info("config reloaded", "log_level", lvl.String())
		})
	}

	mgr, err := bufferpool.NewBufMgr(cfg.Buffer.NumBufs, bufferpool.WithLogger(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "bufferpool: %v\n", err)
		os.Exit(1)
	}
	sh := shell.New(afero.NewOsFs(), cfg.Storage.Workdir, mgr, os.Stdout, log)

	shutdown := func() int {
		if err := sh.Close(); err != nil {
			log.Error("shutdown", "err", err)
			return 1
		}
		return 0
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	// Shell.Close waits for a running command before shutting the pool down.
	go func() {
		<-sigChan
		log.Info("shutting down")
		os.Exit(shutdown())
	}()

	if strings.TrimSpace(*oneShot) != "" {
		code := 0
		for _, line := range strings.Split(*oneShot, ";") {
			quit, err := sh.Exec(line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				code = 1
				break
			}
			if quit {
				break
			}
		}
		if c := shutdown(); c != 0 {
			code = c
		}
		os.Exit(code)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     cfg.Shell.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("novabuf: %d frames, data directory %s\n", mgr.NumBufs(), cfg.Storage.Workdir)
	fmt.Println("type help for help")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Println()
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "readline: %v\n", err)
			break
		}

		quit, err := sh.Exec(line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		if quit {
			break
		}
	}

	_ = rl.Close()
	os.Exit(shutdown())
}
