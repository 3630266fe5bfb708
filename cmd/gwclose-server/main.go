package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"

	"github.com/gwclose/gwclose/core"
	"github.com/gwclose/gwclose/internal/arcgis"
	"github.com/gwclose/gwclose/internal/config"
	"github.com/gwclose/gwclose/internal/geom"
	"github.com/gwclose/gwclose/internal/log"
	"github.com/gwclose/gwclose/internal/notify"
	"github.com/gwclose/gwclose/internal/server"
	"github.com/gwclose/gwclose/internal/session"
	"github.com/gwclose/gwclose/internal/trails"
	"github.com/gwclose/gwclose/internal/workflow"
)

var (
	configPath  string
	port        int
	host        string
	provider    string
	verbose     bool
	veryVerbose bool
	devMode     bool
	quiet       bool
	pidfile     string
)

// Fire up a webhook test server by using the --webhook-http-consumer-port
// for example
//   $ ./gwclose-server --webhook-http-consumer-port 9999
//
// and add "http://localhost:9999/closures" to the config endpoints.

func main() {
	gitsha := " (" + core.GitSHA + ")"
	if gitsha == " (0000000)" {
		gitsha = ""
	}
	versionLine := `gwclose-server version: ` + core.Version + gitsha

	output := os.Stderr
	flag.Usage = func() {
		fmt.Fprintf(output,
			versionLine+`

Usage: gwclose-server [-p port] [-c config]

Basic Options:
  -h hostname : listening host
  -p port     : listening port (default: 9850)
  -c path     : config file (default: gwclose.json)
  -q          : no logging. totally silent output
  -v          : enable verbose logging
  -vv         : enable very verbose logging

Advanced Options:
  --pidfile path    : file that contains the pid
  --provider name   : geometry provider, tidwall or orb (default: from config)

Developer Options:
  --dev                             : enable developer mode
  --webhook-http-consumer-port port : Start a test HTTP webhook server

`,
		)
	}

	if len(os.Args) == 3 && os.Args[1] == "--webhook-http-consumer-port" {
		log.SetOutput(os.Stderr)
		port, err := strconv.ParseUint(os.Args[2], 10, 16)
		if err != nil {
			log.Fatal(err)
		}
		http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(r.Body)
			if err != nil {
				log.Fatal(err)
			}
			log.HTTPf("http: %s : %s", r.URL.Path, string(data))
		})
		log.Infof("webhook server http://localhost:%d/", port)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), nil); err != nil {
			log.Fatal(err)
		}
		return
	}

	// parse non standard args.
	nargs := []string{os.Args[0]}
	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--help":
			output = os.Stdout
			flag.Usage()
			return
		case "--version":
			fmt.Fprintf(os.Stdout, "%s\n", versionLine)
			return
		case "--dev", "-dev":
			devMode = true
			continue
		case "--provider", "-provider":
			i++
			if i < len(os.Args) {
				if _, err := geom.ByName(os.Args[i]); err == nil {
					provider = os.Args[i]
					continue
				}
			}
			fmt.Fprintf(os.Stderr, "provider must be 'tidwall' or 'orb'\n")
			os.Exit(1)
		}
		nargs = append(nargs, os.Args[i])
	}
	os.Args = nargs

	flag.IntVar(&port, "p", 9850, "The listening port.")
	flag.StringVar(&pidfile, "pidfile", "", "A file that contains the pid")
	flag.StringVar(&host, "h", "", "The listening host.")
	flag.StringVar(&configPath, "c", "gwclose.json", "The config file.")
	flag.BoolVar(&verbose, "v", false, "Enable verbose logging.")
	flag.BoolVar(&quiet, "q", false, "Quiet logging. Totally silent.")
	flag.BoolVar(&veryVerbose, "vv", false, "Enable very verbose logging.")
	flag.Parse()

	var logw io.Writer = os.Stderr
	if quiet {
		logw = io.Discard
	}
	log.SetOutput(logw)
	if quiet {
		log.Level = 0
	} else if veryVerbose {
		log.Level = 3
	} else if verbose {
		log.Level = 2
	} else {
		log.Level = 1
	}
	core.DevMode = devMode
	core.ShowDebugMessages = veryVerbose

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.LogConfig != "" {
		if err := log.Build(cfg.LogConfig); err != nil {
			log.Fatalf("logconfig: %v", err)
		}
	}
	if provider != "" {
		cfg.Provider = provider
	}

	hostd := ""
	if host != "" {
		hostd = "Addr: " + host + ", "
	}
	var pidferr error

	var cleanedup bool
	var cleanupMu sync.Mutex
	cleanup := func() {
		cleanupMu.Lock()
		defer cleanupMu.Unlock()
		if cleanedup {
			return
		}
		if pidfile != "" {
			os.Remove(pidfile)
		}
		cleanedup = true
	}
	defer cleanup()

	if pidfile != "" {
		pidferr = os.WriteFile(pidfile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0666)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exitCode := 0
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		s := <-c
		log.Warnf("signal: %v", s)
		switch s {
		case syscall.SIGHUP:
			exitCode = 1
		case syscall.SIGINT:
			exitCode = 2
		case syscall.SIGQUIT:
			exitCode = 3
		case syscall.SIGTERM:
			exitCode = 0xf
		}
		cancel()
	}()

	fmt.Fprintf(logw, `
   _____      _____ _
  / ____|    / ____| |    gwclose %s%s %d bit (%s/%s)
 | |  __ __ | |    | |    %sPort: %d, PID: %d
 | | |_ |\ \/\/ /  | |    provider: %s
 | |__| | \_/\_/|___| |__  layer: %s
  \_____|       \_____|____|
`+"\n", core.Version, gitsha, strconv.IntSize, runtime.GOARCH, runtime.GOOS,
		hostd, port, os.Getpid(), cfg.Provider, cfg.LayerURL)
	if pidferr != nil {
		log.Warnf("pidfile: %v", pidferr)
	}

	if err := serve(ctx, cfg, net.JoinHostPort(host, strconv.Itoa(port))); err != nil {
		log.Fatal(err)
	}
	cleanup()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func serve(ctx context.Context, cfg *config.Config, addr string) error {
	p, err := geom.ByName(cfg.Provider)
	if err != nil {
		return err
	}

	ds, err := trails.Load(ctx, cfg.TrailsURL, nil)
	if err != nil {
		// keep serving, every clip will come back empty
		log.Errorf("%v", err)
		ds = trails.New(cfg.TrailsURL, nil)
	}
	if cfg.TrailsFilterKey != "" {
		ds = ds.Filter(cfg.TrailsFilterKey, cfg.TrailsFilterPattern)
		log.Infof("trails: %d features match %s=%s", ds.Len(),
			cfg.TrailsFilterKey, cfg.TrailsFilterPattern)
	}

	store, err := session.Open(cfg.SessionPath)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	defer store.Close()

	client := arcgis.NewClient(cfg.LayerURL, cfg.ViewLayerURL)
	wopts := workflow.Options{Provider: p, Service: client}
	if len(cfg.Endpoints) > 0 {
		m, err := notify.NewManager(cfg.Endpoints)
		if err != nil {
			return err
		}
		go m.Run(ctx)
		wopts.Notifier = m
		log.Infof("notify: %d endpoints", len(cfg.Endpoints))
	}

	s := server.New(server.Options{
		Workflow: wopts,
		Trails:   ds,
		Records:  client,
		Sessions: store,
		Auth: &session.Authenticator{
			Portal:       cfg.PortalURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Username:     cfg.Username,
		},
		MaxRequests: cfg.MaxRequests,
	})
	return s.Serve(ctx, addr)
}
