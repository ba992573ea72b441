package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"speechspy/internal/app"
	"speechspy/internal/config"
	"speechspy/internal/ipc"
)

const clientTimeout = 5 * time.Second

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: speechspy [flags] [command]

commands:
  run                       run the broadcaster (default)
  toggle                    pause or resume broadcasting
  status                    show mode and target
  say <text>...             speak text through the running instance
  settings [key=value]...   show or change broadcast settings
  reload                    re-read the config file
  separators                list separator choices

flags:
`)
	flag.PrintDefaults()
}

func main() {
	var cfgPath, socket string
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config file (json, yaml or toml)")
	flag.StringVar(&socket, "socket", "", "control socket path (default: from config)")
	flag.Usage = usage
	flag.Parse()

	cmd := "run"
	args := flag.Args()
	if len(args) > 0 {
		cmd, args = strings.ToLower(args[0]), args[1:]
	}

	if cmd == "run" {
		if err := run(cfgPath); err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		return
	}

	req, err := buildRequest(cmd, args)
	if err != nil {
		fmt.Println("fatal:", err)
		flag.Usage()
		os.Exit(2)
	}
	if socket == "" {
		socket = socketFromConfig(cfgPath)
	}
	if socket == "" {
		fmt.Println("fatal: control socket is disabled in config")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()
	resp, err := ipc.Send(ctx, socket, req, clientTimeout)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := resp.Err(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	printResponse(cmd, resp)
}

func run(cfgPath string) error {
	a, err := app.NewApp(cfgPath)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return fmt.Errorf("start: %w", err)
	}

	var reason app.StopReason
	select {
	case s := <-sigCh:
		reason = app.StopSIGINT
		if s == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

func buildRequest(cmd string, args []string) (ipc.Request, error) {
	var req ipc.Request
	switch cmd {
	case ipc.CmdToggle, ipc.CmdStatus, ipc.CmdReload, ipc.CmdSeparators:
		req = ipc.Request{Command: cmd}
	case "say":
		if len(args) == 0 {
			return ipc.Request{}, errors.New("say: no text")
		}
		frags := make([]ipc.Fragment, 0, len(args))
		for _, a := range args {
			frags = append(frags, ipc.Fragment{Text: a})
		}
		req = ipc.Request{Command: ipc.CmdSpeak, Sequence: frags}
	case ipc.CmdSettings:
		values := map[string]string{}
		for _, a := range args {
			k, v, ok := strings.Cut(a, "=")
			if !ok || strings.TrimSpace(k) == "" {
				return ipc.Request{}, fmt.Errorf("settings: expected key=value, got %q", a)
			}
			values[strings.TrimSpace(k)] = v
		}
		req = ipc.Request{Command: ipc.CmdSettings, Settings: values}
	default:
		return ipc.Request{}, fmt.Errorf("unknown command %q", cmd)
	}
	return req, req.Validate()
}

// socketFromConfig reads the socket path from the config file, falling back
// to the default location when the file is missing or unreadable.
func socketFromConfig(path string) string {
	cfg, err := config.NewConfigManager(path).Parse()
	if err != nil {
		return config.RuntimeSocketPath()
	}
	return cfg.IPC.SocketPath()
}

func printResponse(cmd string, resp ipc.Response) {
	switch cmd {
	case ipc.CmdStatus:
		line := resp.State
		if resp.Target != "" {
			line += " " + resp.Target
		}
		if resp.TTL != nil {
			line += fmt.Sprintf(" ttl=%d", *resp.TTL)
		}
		fmt.Println(line)
		if resp.Message != "" {
			fmt.Println("last error:", resp.Message)
		}
	case ipc.CmdSettings:
		keys := make([]string, 0, len(resp.Settings))
		for k := range resp.Settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s=%s\n", k, resp.Settings[k])
		}
	case ipc.CmdSeparators:
		for _, s := range resp.Separators {
			fmt.Printf("%s\t%s\n", s.Tag, s.Label)
		}
	default:
		if resp.Message != "" {
			fmt.Println(resp.Message)
		}
	}
}
