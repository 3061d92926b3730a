package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/workdb/app/dispatch"
	"github.com/umputun/workdb/app/enums"
	"github.com/umputun/workdb/app/jobfile"
	"github.com/umputun/workdb/app/notify"
	"github.com/umputun/workdb/app/persistence"
)

var opts struct {
	DB          string        `short:"d" long:"db" env:"WORKDB_DB" default:"workdb.db" description:"durable store file"`
	Memory      bool          `long:"memory" env:"WORKDB_MEMORY" description:"use ephemeral in-memory store"`
	BusyTimeout time.Duration `long:"busy-timeout" env:"WORKDB_BUSY_TIMEOUT" default:"5s" description:"max wait for a locked database"`
	Jobs        string        `short:"f" long:"jobs" env:"WORKDB_JOBS" description:"yaml file with jobs to enqueue"`
	Workers     int           `short:"w" long:"workers" env:"WORKDB_WORKERS" default:"4" description:"max concurrent jobs"`
	Poll        time.Duration `long:"poll" env:"WORKDB_POLL" default:"1s" description:"ready work poll interval"`
	Once        bool          `long:"once" env:"WORKDB_ONCE" description:"exit when no more work can run"`
	LogPrefix   bool          `long:"log-prefix" env:"WORKDB_LOG_PREFIX" description:"prefix job output with item id"`
	MaxLogLines int           `long:"max-log" env:"WORKDB_MAX_LOG" default:"50" description:"output lines attached to job failure"`
	Dbg         bool          `long:"dbg" env:"WORKDB_DEBUG" description:"debug mode"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"filename" env:"FILENAME" default:"workdb.log" description:"log file name"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log file size in MB"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of rotated files"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"max age of rotated files in days"`
		EnabledCompress bool   `long:"compress" env:"COMPRESS" description:"compress rotated files"`
	} `group:"log" namespace:"log" env-namespace:"WORKDB_LOG"`

	Open struct {
		Attempts int           `long:"attempts" env:"ATTEMPTS" default:"5" description:"attempts to lock durable store"`
		Duration time.Duration `long:"duration" env:"DURATION" default:"500ms" description:"initial delay between attempts"`
		Factor   float64       `long:"factor" env:"FACTOR" default:"2" description:"backoff factor"`
	} `group:"open" namespace:"open" env-namespace:"WORKDB_OPEN"`
}

var revision = "unknown"

func main() {
	fmt.Printf("workdb %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	out := setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT and SIGTERM
	if err := run(ctx, out); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run is the composition root, it owns store handles for the whole process lifetime
func run(ctx context.Context, stdout io.Writer) error {
	hub := notify.NewHub(notify.Logger{})
	handles := persistence.NewHandles(hub)
	defer func() {
		if err := handles.Close(); err != nil {
			log.Printf("[WARN] can't close store, %v", err)
		}
	}()

	store, err := openStore(ctx, handles)
	if err != nil {
		return err
	}

	if opts.Jobs != "" {
		parser := jobfile.New(opts.Jobs)
		jobs, err := parser.List()
		if err != nil {
			return err
		}
		added, err := jobfile.Enqueue(ctx, store, jobs)
		if err != nil {
			return err
		}
		log.Printf("[INFO] %d of %d jobs from %s enqueued", added, len(jobs), parser)
	}
	logStats(ctx, store)

	d := dispatch.Dispatcher{
		Store:        store,
		Runner:       &dispatch.ShellRunner{Stdout: stdout, EnableLogPrefix: opts.LogPrefix, MaxLogLines: opts.MaxLogLines},
		Wakeups:      hub.Wakeups(),
		PollInterval: opts.Poll,
		Concurrency:  opts.Workers,
		Drain:        opts.Once,
	}
	if err := d.Do(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logStats(ctx, store)
	return nil
}

// openStore returns ephemeral or durable store. Durable store locked by another process
// is retried with backoff, other open errors fail immediately.
func openStore(ctx context.Context, h *persistence.Handles) (*persistence.SQLiteStore, error) {
	if opts.Memory {
		return h.Ephemeral(ctx)
	}

	loc := persistence.Location{Path: opts.DB, BusyTimeout: opts.BusyTimeout}
	rptr := repeater.New(&strategy.Backoff{Repeats: opts.Open.Attempts, Duration: opts.Open.Duration,
		Factor: opts.Open.Factor, Jitter: true})

	var store *persistence.SQLiteStore
	var openErr error
	err := rptr.Do(ctx, func() error {
		s, err := h.Durable(ctx, loc)
		if errors.Is(err, persistence.ErrLocked) {
			log.Printf("[INFO] %s is locked by another process, waiting", loc.Path)
			return err
		}
		store, openErr = s, err
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, openErr
}

func logStats(ctx context.Context, store *persistence.SQLiteStore) {
	stats, err := store.Stats(ctx)
	if err != nil {
		log.Printf("[WARN] can't get stats, %v", err)
		return
	}
	parts := make([]string, 0, len(stats))
	for _, st := range enums.WorkStatusValues {
		parts = append(parts, fmt.Sprintf("%s:%d", st, stats[st]))
	}
	log.Printf("[INFO] work items %s", strings.Join(parts, ", "))
}

// setupLogs configures lgr and returns writer used for logs and job output
func setupLogs() io.Writer {
	out := io.Writer(os.Stdout)
	if opts.Log.Enabled {
		out = &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
		}
	}

	logOpts := []log.Option{log.Msec, log.LevelBraces, log.Out(out)}
	if opts.Dbg {
		logOpts = append(logOpts, log.Debug, log.CallerFunc, log.CallerPkg, log.CallerFile)
	}
	log.Setup(logOpts...)
	return out
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			cancel() // terminate on SIGTERM and SIGINT
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
}
