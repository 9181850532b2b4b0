// Package main is the entry point for the attune daemon and its
// control commands.
//
// Usage:
//
//	attune           - Start the daemon
//	attune daemon    - Start the daemon
//	attune state     - Print the daemon's current summary
//	attune cycle     - Force an analysis cycle now
//	attune mode NAME - Switch mode (ghost|chill|study|coach)
//	attune help      - Show help
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/attune-sh/attune/internal/api"
	"github.com/attune-sh/attune/internal/category"
	"github.com/attune-sh/attune/internal/config"
	"github.com/attune-sh/attune/internal/llm"
	"github.com/attune-sh/attune/internal/notify"
	"github.com/attune-sh/attune/internal/resource"
	"github.com/attune-sh/attune/internal/scheduler"
	"github.com/attune-sh/attune/internal/statefile"
	"github.com/attune-sh/attune/internal/storage"
	"github.com/attune-sh/attune/internal/summarize"
	"github.com/attune-sh/attune/internal/tracker"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a config file")
	listenAddr := pflag.String("listen", "", "override the API listen address")
	history := pflag.Bool("history", false, "with state: print recent summary history")
	pflag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	cmd := "daemon"
	args := pflag.Args()
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "daemon", "d":
		runDaemon(cfg)
	case "state", "s":
		runState(cfg, *history)
	case "cycle":
		runCycle(cfg)
	case "mode", "m":
		if len(args) < 2 {
			fmt.Println("Usage: attune mode <ghost|chill|study|coach>")
			os.Exit(1)
		}
		runMode(cfg, args[1])
	case "categories", "cat":
		runCategories(cfg)
	case "help", "-h", "--help":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printHelp()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func printHelp() {
	fmt.Println(`Attune - Activity classification and adaptive interventions

Usage:
  attune [command]

Commands:
  daemon, d        Start the daemon (default)
  state, s         Print the current summary from the running daemon
                   (--history prints the recent summary history)
  cycle            Force an analysis cycle now
  mode NAME        Switch mode: ghost, chill, study, coach
  categories, cat  List app categorizations
  help             Show this help

Flags:
  -c, --config PATH   Explicit config file
      --listen ADDR   Override the API listen address

Examples:
  attune                      # Start the daemon
  attune mode study           # Tight 5-minute study loop
  attune state                # What does attune think I'm doing?`)
}

func runDaemon(cfg *config.Config) {
	log.SetFlags(log.Ldate | log.Ltime)
	log.Println("attune starting...")

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Printf("Storage initialized at: %s", cfg.StoragePath)

	categories, err := category.Open(store)
	if err != nil {
		log.Fatalf("Failed to load categories: %v", err)
	}

	res := resource.NewManager(cfg.Tracker.MetadataTTL)
	trackerClient := tracker.NewClient(cfg.Tracker, cfg.TrackerBaseURL(), res)
	collector := tracker.NewCollector(trackerClient, cfg.Tracker.MergeGap)
	llmClient := llm.NewClient(cfg.LLM, cfg.LLMBaseURL(), res)

	summarizer := summarize.New(llmClient, summarize.Options{
		NudgeTimeout:      cfg.LLM.NudgeTimeout,
		AnalysisTimeout:   cfg.LLM.AnalysisTimeout,
		RapidSwitchCount:  cfg.Classify.RapidSwitchCount,
		RapidSwitchWindow: cfg.Classify.RapidSwitchWindow,
	})

	var notifier notify.Notifier = notify.LogNotifier{}
	if desktop := notify.NewDesktopNotifier(); desktop.Available() {
		notifier = desktop
	} else {
		log.Println("notify-send not found, nudges go to the log")
	}

	engine := scheduler.New(cfg, collector, summarizer,
		categories, store, notifier, statefile.New(cfg.StoragePath))

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := api.NewServer(engine, categories, store, trackerClient, llmClient)
	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
	}

	go engine.Run(ctx)
	go func() {
		log.Printf("API listening on http://%s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("attune shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("API shutdown: %v", err)
	}
	log.Println("attune stopped")
}

// The control commands below talk to the running daemon over its API.

func runState(cfg *config.Config, history bool) {
	path := "/api/state"
	if history {
		path = "/api/summaries?limit=20"
	}
	body, err := daemonGet(cfg, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Is the daemon running? %v\n", err)
		os.Exit(1)
	}
	printJSON(body)
}

func runCycle(cfg *config.Config) {
	body, err := daemonPost(cfg, "/api/cycle", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cycle failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(body)
}

func runMode(cfg *config.Config, mode string) {
	if _, err := scheduler.ParseMode(mode); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	payload, _ := json.Marshal(map[string]string{"mode": mode})
	if _, err := daemonPost(cfg, "/api/mode", payload); err != nil {
		fmt.Fprintf(os.Stderr, "Mode switch failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Mode set to %s\n", mode)
}

func runCategories(cfg *config.Config) {
	body, err := daemonGet(cfg, "/api/categories")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Is the daemon running? %v\n", err)
		os.Exit(1)
	}
	printJSON(body)
}

func daemonGet(cfg *config.Config, path string) ([]byte, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get("http://" + cfg.ListenAddr + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return readResponse(resp)
}

func daemonPost(cfg *config.Config, path string, payload []byte) ([]byte, error) {
	// Forced cycles wait for collection and the model call.
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Post("http://"+cfg.ListenAddr+path,
		"application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return readResponse(resp)
}

func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	return body, nil
}

func printJSON(body []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		os.Stdout.Write(body)
		return
	}
	fmt.Println(buf.String())
}
