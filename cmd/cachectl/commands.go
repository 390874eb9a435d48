package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/toolcache/apiclient"
	"github.com/jonwraymond/toolcache/cache"
	"github.com/jonwraymond/toolcache/health"
	"github.com/jonwraymond/toolcache/observe"
)

const (
	defaultServeAddr = "127.0.0.1:8080"
	shutdownTimeout  = 5 * time.Second
)

var errUnhealthy = errors.New("unhealthy")

type command struct {
	// offline commands run without opening the store or telemetry.
	offline bool
	run     func(ctx context.Context, a *app, args []string, out io.Writer) error
}

var commands = map[string]command{
	"stats":      {run: cmdStats},
	"keys":       {run: cmdKeys},
	"get":        {run: cmdGet},
	"set":        {run: cmdSet},
	"delete":     {run: cmdDelete},
	"invalidate": {run: cmdInvalidate},
	"sweep":      {run: cmdSweep},
	"clear":      {run: cmdClear},
	"fetch":      {run: cmdFetch},
	"tools":      {offline: true, run: cmdTools},
	"health":     {run: cmdHealth},
	"serve":      {run: cmdServe},
}

func cmdStats(_ context.Context, a *app, args []string, out io.Writer) error {
	if err := noArgs("stats", args); err != nil {
		return err
	}
	s := a.cache.Stats()
	if a.opts.json {
		return printJSON(out, s)
	}
	_, err := fmt.Fprintf(out,
		"size:           %d/%d\nexpired:        %d\nbytes:          %d\nhit rate:       %.2f\nhits:           %d\nmisses:         %d\nevictions:      %d\nexpirations:    %d\npersist errors: %d\n",
		s.Size, s.MaxSize, s.Expired, s.TotalSizeBytes, s.HitRate,
		s.Hits, s.Misses, s.Evictions, s.Expirations, s.PersistErrors)
	return err
}

func cmdKeys(_ context.Context, a *app, args []string, out io.Writer) error {
	if err := noArgs("keys", args); err != nil {
		return err
	}
	keys := a.cache.Keys()
	if a.opts.json {
		return printJSON(out, keys)
	}
	return printLines(out, keys)
}

func cmdGet(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) != 1 {
		return usageError{"get: want exactly one KEY"}
	}
	data, ok := a.cache.Get(ctx, args[0])
	if !ok {
		return fmt.Errorf("%s: %w", args[0], errNotFound)
	}
	return printData(out, data)
}

func cmdSet(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	ttl := fs.Duration("ttl", 0, "entry TTL (default: cache default)")
	tags := fs.String("tags", "", "comma-separated tags")
	if err := fs.Parse(args); err != nil {
		return usageError{"set: " + err.Error()}
	}
	if fs.NArg() != 2 {
		return usageError{"set: want KEY VALUE"}
	}

	var opts []cache.SetOption
	if *ttl > 0 {
		opts = append(opts, cache.WithTTL(*ttl))
	}
	if *tags != "" {
		opts = append(opts, cache.WithTags(splitList(*tags)...))
	}
	if err := a.cache.Set(ctx, fs.Arg(0), []byte(fs.Arg(1)), opts...); err != nil {
		return err
	}
	if err := a.cache.LastPersistError(); err != nil {
		return fmt.Errorf("stored in memory only: %w", err)
	}
	return nil
}

func cmdDelete(ctx context.Context, a *app, args []string, _ io.Writer) error {
	if len(args) != 1 {
		return usageError{"delete: want exactly one KEY"}
	}
	if !a.cache.Delete(ctx, args[0]) {
		return fmt.Errorf("%s: %w", args[0], errNotFound)
	}
	return nil
}

func cmdInvalidate(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) != 1 {
		return usageError{"invalidate: want exactly one TAG"}
	}
	return printCount(a, out, "removed", a.cache.InvalidateByTag(ctx, args[0]))
}

func cmdSweep(ctx context.Context, a *app, args []string, out io.Writer) error {
	if err := noArgs("sweep", args); err != nil {
		return err
	}
	return printCount(a, out, "removed", a.cache.Sweep(ctx))
}

func cmdClear(ctx context.Context, a *app, args []string, _ io.Writer) error {
	if err := noArgs("clear", args); err != nil {
		return err
	}
	a.cache.Destroy(ctx)
	return a.cache.LastPersistError()
}

func cmdFetch(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError{"fetch: want ENDPOINT [KEY=VALUE ...]"}
	}
	params, err := parseParams(args[1:])
	if err != nil {
		return err
	}
	data, err := a.api.GetJSON(ctx, args[0], params)
	if err != nil {
		return err
	}
	return printData(out, data)
}

func cmdTools(_ context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tools", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	category := fs.String("category", "", "only list tools in this category")
	if err := fs.Parse(args); err != nil {
		return usageError{"tools: " + err.Error()}
	}

	var names []string
	if *category == "" {
		names = apiclient.ToolNames()
	} else {
		cat := apiclient.Category(*category)
		if !slices.Contains(apiclient.Categories(), cat) {
			return usageError{fmt.Sprintf("tools: unknown category %q", *category)}
		}
		names = apiclient.ToolsInCategory(cat)
	}
	if a.opts.json {
		return printJSON(out, names)
	}
	return printLines(out, names)
}

func cmdHealth(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	skipAPI := fs.Bool("skip-api", false, "do not call the remote health endpoint")
	if err := fs.Parse(args); err != nil {
		return usageError{"health: " + err.Error()}
	}

	report := newAggregator(a, !*skipAPI).CheckAll(ctx)
	if a.opts.json {
		if err := printJSON(out, health.NewResponse(report)); err != nil {
			return err
		}
	} else {
		for _, r := range report.Results {
			line := fmt.Sprintf("%-6s %-9s %s", r.Name, r.Status, r.Message)
			if r.Error != nil {
				line += ": " + r.Error.Error()
			}
			if _, err := fmt.Fprintln(out, line); err != nil {
				return err
			}
		}
	}
	if report.Status == health.StatusUnhealthy {
		return errUnhealthy
	}
	return nil
}

func cmdServe(ctx context.Context, a *app, args []string, _ io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", defaultServeAddr, "listen address")
	skipAPI := fs.Bool("skip-api", false, "exclude the remote API from readiness")
	if err := fs.Parse(args); err != nil {
		return usageError{"serve: " + err.Error()}
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	srv := &http.Server{
		Handler:           newServeHandler(a, newAggregator(a, !*skipAPI)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.Info(ctx, "serving", observe.F("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve: shutdown: %w", err)
	}
	return nil
}

func newAggregator(a *app, withAPI bool) *health.Aggregator {
	agg := health.NewAggregator()
	agg.Register(health.NewCacheChecker(a.cache, health.CacheCheckerConfig{}))
	agg.Register(health.NewStoreChecker(a.store))
	if withAPI {
		agg.Register(health.NewAPIChecker(a.api))
	}
	return agg
}

func newServeHandler(a *app, agg *health.Aggregator) http.Handler {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.cache.Stats())
	})
	if m := a.cfg.Observe.Metrics; m.Enabled && m.Exporter == "prometheus" {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return mux
}

func noArgs(name string, args []string) error {
	if len(args) > 0 {
		return usageError{name + ": unexpected arguments"}
	}
	return nil
}

func parseParams(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, usageError{fmt.Sprintf("fetch: parameter %q is not KEY=VALUE", arg)}
		}
		params[k] = v
	}
	return params, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLines(out io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(out, l); err != nil {
			return err
		}
	}
	return nil
}

func printData(out io.Writer, data []byte) error {
	if _, err := out.Write(data); err != nil {
		return err
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		_, err := io.WriteString(out, "\n")
		return err
	}
	return nil
}

func printCount(a *app, out io.Writer, label string, n int) error {
	if a.opts.json {
		return printJSON(out, map[string]int{label: n})
	}
	_, err := fmt.Fprintf(out, "%s %d\n", label, n)
	return err
}
