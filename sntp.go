// SNTP client

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"example.com/sntp/base/zaplog"

	"example.com/sntp/benchmark"

	"example.com/sntp/core/client"
	"example.com/sntp/core/config"
	"example.com/sntp/core/sync"
	"example.com/sntp/core/timebase"

	"example.com/sntp/driver/clock"
	"example.com/sntp/driver/ntpquery"

	"example.com/sntp/net/udp"
)

const (
	defaultMetricsAddr = "127.0.0.1:8080"
)

type svcConfig struct {
	ServerAddr    string `toml:"server_address,omitempty"`
	LocalAddr     string `toml:"local_address,omitempty"`
	Timeout       string `toml:"timeout,omitempty"`
	PollInterval  string `toml:"poll_interval,omitempty"`
	SyncInterval  string `toml:"sync_interval,omitempty"`
	KoDBackoff    string `toml:"kod_backoff,omitempty"`
	MaxKoDBackoff string `toml:"max_kod_backoff,omitempty"`
	DSCP          *uint8 `toml:"dscp,omitempty"`
	MetricsAddr   string `toml:"metrics_address,omitempty"`
}

type syncConfig struct {
	timeout     time.Duration
	sync        sync.Config
	metricsAddr string
}

var (
	log *zap.Logger

	errInvalidDSCP = errors.New("dscp must be in range [0, 63]")
)

func initLogger(verbose bool) {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.EncoderConfig.EncodeCaller = func(
		caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		// See https://github.com/scionproto/scion/blob/master/pkg/log/log.go
		p := caller.TrimmedPath()
		if len(p) > 30 {
			p = "..." + p[len(p)-27:]
		}
		enc.AppendString(fmt.Sprintf("%30s", p))
	}
	if !verbose {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var err error
	log, err = c.Build()
	if err != nil {
		panic(err)
	}
	zaplog.SetLogger(log)
}

func runMonitor(log *zap.Logger, addr string) {
	http.Handle("/metrics", promhttp.Handler())
	err := http.ListenAndServe(addr, nil)
	log.Fatal("failed to serve metrics", zap.Error(err))
}

func parseDuration(s string, d time.Duration) (time.Duration, error) {
	if s == "" {
		return d, nil
	}
	return time.ParseDuration(s)
}

func parseConfig(raw []byte) (syncConfig, error) {
	var cfg svcConfig
	err := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		return syncConfig{}, err
	}
	var sc syncConfig
	sc.sync.ServerAddr = cfg.ServerAddr
	sc.sync.Options.LocalAddr = cfg.LocalAddr
	sc.sync.Options.DSCP = config.DSCP
	if cfg.DSCP != nil {
		if *cfg.DSCP > 63 {
			return syncConfig{}, errInvalidDSCP
		}
		sc.sync.Options.DSCP = *cfg.DSCP
	}
	sc.metricsAddr = cfg.MetricsAddr
	if sc.metricsAddr == "" {
		sc.metricsAddr = defaultMetricsAddr
	}
	for _, x := range []struct {
		s   string
		d   time.Duration
		dst *time.Duration
	}{
		{cfg.Timeout, config.ExchangeTimeout, &sc.timeout},
		{cfg.PollInterval, config.PollInterval, &sc.sync.Options.PollInterval},
		{cfg.SyncInterval, config.SyncInterval, &sc.sync.Interval},
		{cfg.KoDBackoff, config.KoDBackoff, &sc.sync.KoDBackoff},
		{cfg.MaxKoDBackoff, config.MaxKoDBackoff, &sc.sync.MaxKoDBackoff},
	} {
		*x.dst, err = parseDuration(x.s, x.d)
		if err != nil {
			return syncConfig{}, err
		}
	}
	return sc, nil
}

func loadConfig(configFile string) syncConfig {
	raw, err := os.ReadFile(configFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}
	cfg, err := parseConfig(raw)
	if err != nil {
		log.Fatal("failed to decode configuration", zap.Error(err))
	}
	return cfg
}

func newClient(timeout time.Duration) *client.Client {
	lclk := &clock.SystemClock{Log: log}
	return &client.Client{
		Clock:   timebase.NewClock(lclk),
		Timeout: timeout,
		OnTime: func(ms int64) {
			log.Info("got time", zap.Time("time", time.UnixMilli(ms).UTC()))
		},
	}
}

func runClient(configFile string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := loadConfig(configFile)
	c := newClient(cfg.timeout)

	go runMonitor(log, cfg.metricsAddr)

	err := sync.RunPeriodicSync(ctx, log, c.Clock, c, cfg.sync)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("sync failed", zap.Error(err))
	}
}

func crossCheck(c *client.Client, serverAddr string, timeout time.Duration) {
	host, port, err := udp.ParseAddr(serverAddr, config.DefaultServerAddr)
	if err != nil {
		log.Fatal("failed to parse server address", zap.Error(err))
	}
	ref, err := ntpquery.QueryOffset(log, host, port, timeout)
	if err != nil {
		log.Info("failed to query reference", zap.String("host", host), zap.Error(err))
		return
	}
	off := time.Duration(c.Clock.Now()-time.Now().UnixMilli()) * time.Millisecond
	log.Info("cross-check",
		zap.Duration("sntp offset", off),
		zap.Duration("reference offset", ref),
		zap.Duration("difference", off-ref),
	)
}

func runTool(serverAddr string, opts udp.Options, timeout time.Duration, check bool) {
	ctx := context.Background()
	c := newClient(timeout)

	res, err := c.Exchange(ctx, log, serverAddr, opts)
	if err != nil {
		log.Fatal("failed to exchange", zap.String("to", serverAddr), zap.Error(err))
	}
	if res.Time <= 0 {
		log.Fatal("no time received",
			zap.String("from", serverAddr),
			zap.Bool("timed out", res.TimedOut),
			zap.Error(res.Err),
		)
	}
	fmt.Println(c.Clock.Time().Format(time.RFC3339Nano))

	if check {
		crossCheck(c, serverAddr, timeout)
	}
}

func runBenchmark(serverAddr string, opts udp.Options, timeout time.Duration, n int) {
	ctx := context.Background()
	c := newClient(timeout)
	c.OnTime = nil

	s, err := benchmark.Run(ctx, log, c, serverAddr, opts, n)
	if err != nil {
		log.Fatal("benchmark failed", zap.Error(err))
	}
	fmt.Printf("exchanges: %d, succeeded: %d, timed out: %d, rejected: %d, median offset: %d ms\n",
		s.Exchanges, s.Succeeded, s.TimedOut, s.Rejected, s.MedianOffset)
	s.Print(os.Stdout)
}

func exitWithUsage() {
	fmt.Println("<usage>")
	os.Exit(1)
}

func main() {
	var (
		verbose    bool
		configFile string
		serverAddr string
		localAddr  string
		timeout    time.Duration
		check      bool
		count      int
	)

	clientFlags := flag.NewFlagSet("client", flag.ExitOnError)
	toolFlags := flag.NewFlagSet("tool", flag.ExitOnError)
	benchmarkFlags := flag.NewFlagSet("benchmark", flag.ExitOnError)

	clientFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	clientFlags.StringVar(&configFile, "config", "", "Config file")

	toolFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	toolFlags.StringVar(&serverAddr, "server", config.DefaultServerAddr, "Server address")
	toolFlags.StringVar(&localAddr, "local", "", "Local address")
	toolFlags.DurationVar(&timeout, "timeout", config.ExchangeTimeout, "Exchange timeout")
	toolFlags.BoolVar(&check, "check", false, "Cross-check with an independent NTP client")

	benchmarkFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	benchmarkFlags.StringVar(&serverAddr, "server", config.DefaultServerAddr, "Server address")
	benchmarkFlags.StringVar(&localAddr, "local", "", "Local address")
	benchmarkFlags.DurationVar(&timeout, "timeout", config.ExchangeTimeout, "Exchange timeout")
	benchmarkFlags.IntVar(&count, "n", 100, "Number of exchanges")

	if len(os.Args) < 2 {
		exitWithUsage()
	}

	switch os.Args[1] {
	case clientFlags.Name():
		err := clientFlags.Parse(os.Args[2:])
		if err != nil || clientFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runClient(configFile)
	case toolFlags.Name():
		err := toolFlags.Parse(os.Args[2:])
		if err != nil || toolFlags.NArg() != 0 {
			exitWithUsage()
		}
		initLogger(verbose)
		opts := udp.Options{LocalAddr: localAddr, DSCP: config.DSCP, PollInterval: config.PollInterval}
		runTool(serverAddr, opts, timeout, check)
	case benchmarkFlags.Name():
		err := benchmarkFlags.Parse(os.Args[2:])
		if err != nil || benchmarkFlags.NArg() != 0 {
			exitWithUsage()
		}
		if count <= 0 {
			exitWithUsage()
		}
		initLogger(verbose)
		opts := udp.Options{LocalAddr: localAddr, DSCP: config.DSCP, PollInterval: config.PollInterval}
		runBenchmark(serverAddr, opts, timeout, count)
	default:
		exitWithUsage()
	}
}
