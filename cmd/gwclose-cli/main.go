package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gwclose/gwclose/core"
	"github.com/gwclose/gwclose/internal/arcgis"
	"github.com/gwclose/gwclose/internal/config"
	"github.com/gwclose/gwclose/internal/feature"
	"github.com/gwclose/gwclose/internal/geom"
	"github.com/gwclose/gwclose/internal/log"
	"github.com/gwclose/gwclose/internal/notify"
	"github.com/gwclose/gwclose/internal/pipeline"
	"github.com/gwclose/gwclose/internal/session"
	"github.com/gwclose/gwclose/internal/trails"
	"github.com/gwclose/gwclose/internal/workflow"
	"github.com/peterh/liner"
	"github.com/tidwall/pretty"
)

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gwclose_history"
	}
	return filepath.Join(home, ".gwclose_history")
}

var (
	configPath = "gwclose.json"
	oneCommand string
	raw        bool
	noprompt   bool
	tty        bool
	verbose    bool
)

func showHelp() bool {
	gitsha := ""
	if core.GitSHA == "" || core.GitSHA == "0000000" {
		gitsha = ""
	} else {
		gitsha = " (git:" + core.GitSHA + ")"
	}
	fmt.Fprintf(os.Stdout, "gwclose-cli %s%s\n\n", core.Version, gitsha)
	fmt.Fprintf(os.Stdout, "Usage: gwclose-cli [OPTIONS] [cmd [arg [arg ...]]]\n")
	fmt.Fprintf(os.Stdout, "       gwclose-cli clip [-trails source] [-provider name] polygon.geojson\n")
	fmt.Fprintf(os.Stdout, " --raw              Use raw formatting for replies (default when STDOUT is not a tty)\n")
	fmt.Fprintf(os.Stdout, " --noprompt         Do not display a prompt\n")
	fmt.Fprintf(os.Stdout, " --tty              Force TTY\n")
	fmt.Fprintf(os.Stdout, " -v                 Verbose logging\n")
	fmt.Fprintf(os.Stdout, " -c <path>          Config file (default: %s)\n", configPath)
	fmt.Fprintf(os.Stdout, "\n")
	return false
}

func parseArgs() bool {
	defer func() {
		if v := recover(); v != nil {
			if v, ok := v.(string); ok && v == "bad arg" {
				showHelp()
			}
		}
	}()

	args := os.Args[1:]
	readArg := func(arg string) string {
		if len(args) == 0 {
			panic("bad arg")
		}
		var narg = args[0]
		args = args[1:]
		return narg
	}
	badArg := func(arg string) bool {
		fmt.Fprintf(os.Stderr, "Unrecognized option or bad number of args for: '%s'\n", arg)
		return false
	}

	for len(args) > 0 {
		arg := readArg("")
		if arg == "--help" || arg == "-?" {
			return showHelp()
		}
		if !strings.HasPrefix(arg, "-") {
			args = append([]string{arg}, args...)
			break
		}
		switch arg {
		default:
			return badArg(arg)
		case "--raw":
			raw = true
		case "--tty":
			tty = true
		case "--noprompt":
			noprompt = true
		case "-v":
			verbose = true
		case "-c":
			configPath = readArg(arg)
		}
	}
	oneCommand = strings.Join(args, " ")
	return true
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "clip" {
		if err := runClip(context.Background(), os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		return
	}
	if !parseArgs() {
		return
	}
	if verbose {
		log.Level = 2
	}

	if !raw && !tty && runtime.GOOS != "windows" {
		fi, err := os.Stdout.Stat()
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return
		}
		raw = (fi.Mode() & os.ModeCharDevice) == 0
	}
	if len(oneCommand) > 0 && strings.ToLower(strings.Fields(oneCommand)[0]) == "help" {
		showHelp()
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	store, err := session.Open(cfg.SessionPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var notifier workflow.Notifier
	if len(cfg.Endpoints) > 0 {
		m, err := notify.NewManager(cfg.Endpoints)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		go m.Run(ctx)
		notifier = m
	}
	client := arcgis.NewClient(cfg.LayerURL, cfg.ViewLayerURL)
	sh, err := newShell(ctx, cfg, client, store, notifier)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	line := liner.NewLiner()
	defer line.Close()

	names := commandNames()
	groupsM := make(map[string][]string)
	for _, name := range names {
		groupsM[commands[name].Group] = append(groupsM[commands[name].Group], name)
	}

	line.SetMultiLineMode(false)
	line.SetCtrlCAborts(true)
	if !(noprompt && tty) {
		line.SetCompleter(func(line string) (c []string) {
			if strings.HasPrefix(strings.ToLower(line), "help ") {
				nline := strings.TrimSpace(line[5:])
				for group := range groupsM {
					if strings.HasPrefix("@"+group, strings.ToLower(nline)) {
						c = append(c, "help @"+group)
					}
				}
				for _, n := range names {
					if strings.HasPrefix(n, strings.ToLower(nline)) {
						c = append(c, "help "+n)
					}
				}
				return
			}
			for _, n := range names {
				if strings.HasPrefix(n, strings.ToLower(line)) {
					c = append(c, n)
				}
			}
			return
		})
	}
	if f, err := os.Open(historyFile()); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile()); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
		} else {
			line.WriteHistory(f)
			f.Close()
		}
	}()
	for {
		var command string
		var err error
		if oneCommand == "" {
			if raw || noprompt {
				command, err = line.Prompt("")
			} else {
				command, err = line.Prompt(sh.wf.State().String() + "> ")
			}
		} else {
			command = oneCommand
		}
		if err == nil {
			nohist := strings.HasPrefix(command, " ")
			command = strings.TrimSpace(command)
			if command != "" {
				if !nohist {
					line.AppendHistory(command)
				}
				lower := strings.ToLower(command)
				if lower == "exit" || lower == "quit" {
					return
				}
				if lower == "help" || strings.HasPrefix(lower, "help ") {
					help(strings.TrimSpace(command[4:]), groupsM)
					continue
				}
				out, err := sh.exec(command)
				if err != nil {
					fmt.Fprintln(os.Stderr, "(error) "+err.Error())
				} else {
					fmt.Fprintln(os.Stdout, termOutput(out))
				}
			}
		} else if err == liner.ErrPromptAborted {
			return
		} else if err == io.EOF {
			return
		} else {
			fmt.Fprintf(os.Stderr, "Error reading line: %s", err.Error())
		}
		if oneCommand != "" {
			return
		}
	}
}

// termOutput colors JSON replies for the terminal.
func termOutput(out string) string {
	if raw || !strings.HasPrefix(out, "{") {
		return out
	}
	return strings.TrimSpace(string(pretty.Color(pretty.Pretty([]byte(out)), nil)))
}

func help(arg string, groupsM map[string][]string) {
	var groups []string
	for group := range groupsM {
		groups = append(groups, "@"+group)
	}
	if arg == "" {
		fmt.Fprintf(os.Stderr, "gwclose-cli %s (git:%s)\n", core.Version, core.GitSHA)
		fmt.Fprintf(os.Stderr, `Type:   "help @<group>" to get a list of commands in <group>`+"\n")
		fmt.Fprintf(os.Stderr, `        "help <command>" for help on <command>`+"\n")
		if !(noprompt && tty) {
			fmt.Fprintf(os.Stderr, `        "help <tab>" to get a list of possible help topics`+"\n")
		}
		fmt.Fprintf(os.Stderr, `        "quit" to exit`+"\n")
		fmt.Fprintf(os.Stderr, "Groups: %s\n", strings.Join(groups, ", "))
		return
	}
	if strings.HasPrefix(arg, "@") {
		for _, name := range groupsM[strings.ToLower(arg[1:])] {
			fmt.Fprintf(os.Stderr, "%s\n", commands[name].termOutput("  "))
		}
		return
	}
	if c, ok := commands[strings.ToLower(arg)]; ok {
		fmt.Fprintf(os.Stderr, "%s\n", c.termOutput("  "))
	}
}

// runClip clips the trails to the polygon in the last argument and writes
// the dissolved candidate to w as GeoJSON.
func runClip(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("clip", flag.ContinueOnError)
	cpath := fs.String("c", configPath, "config file")
	src := fs.String("trails", "", "trails source (default: from config)")
	name := fs.String("provider", "", "geometry provider (default: from config)")
	indent := fs.Bool("pretty", false, "indent the output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: gwclose-cli clip [-trails source] [-provider name] polygon.geojson")
	}
	cfg, err := config.Load(*cpath)
	if err != nil {
		return err
	}
	if *src == "" {
		*src = cfg.TrailsURL
	}
	if *name == "" {
		*name = cfg.Provider
	}
	p, err := geom.ByName(*name)
	if err != nil {
		return err
	}

	var data []byte
	if fs.Arg(0) == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(fs.Arg(0))
	}
	if err != nil {
		return err
	}
	poly, err := feature.DecodePolygon(data)
	if err != nil {
		return err
	}
	ds, err := trails.Load(ctx, *src, nil)
	if err != nil {
		return err
	}
	candidate, stats, err := pipeline.Run(p, ds.Candidates(poly), poly)
	if err != nil && !errors.Is(err, pipeline.ErrNothingToDissolve) {
		return err
	}
	log.Infof("%s", formatStats(stats))
	out := feature.EncodeCollection(candidate)
	if *indent {
		out = pretty.Pretty(out)
	}
	_, err = fmt.Fprintln(w, strings.TrimSpace(string(out)))
	return err
}
