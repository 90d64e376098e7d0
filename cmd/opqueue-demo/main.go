// Command opqueue-demo runs an offline operation queue against a SQLite
// snapshot store and exposes it over HTTP.
//
// Endpoints:
//
//	POST /enqueue  {"kind":"api_call","priority":5,"spec":{...}}
//	POST /process  force a processing run
//	GET  /status   live entries, failed items and counters
//	GET  /ws       websocket stream of queue events
//
// Connectivity is detected by probing a URL with HEAD requests; processing
// starts automatically once the probe succeeds.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"

	"github.com/velmie/opqueue"
	"github.com/velmie/opqueue/sqlite"
	"github.com/velmie/opqueue/wsevents"
)

const exitUsage = 2

type stdLogger struct {
	logger  *log.Logger
	verbose bool
}

func (l stdLogger) Debug(msg string, args ...any) {
	if !l.verbose {
		return
	}
	l.logger.Printf("DEBUG %s %s", msg, formatArgs(args))
}

func (l stdLogger) Info(msg string, args ...any) {
	l.logger.Printf("INFO %s %s", msg, formatArgs(args))
}

func (l stdLogger) Warn(msg string, args ...any) {
	l.logger.Printf("WARN %s %s", msg, formatArgs(args))
}

func (l stdLogger) Error(msg string, args ...any) {
	l.logger.Printf("ERROR %s %s", msg, formatArgs(args))
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(args))
	for i := 0; i < len(args); i += 2 {
		key := args[i]
		val := any("<missing>")
		if i+1 < len(args) {
			val = args[i+1]
		}
		pairs = append(pairs, fmt.Sprintf("%v=%v", key, val))
	}

	return strings.Join(pairs, " ")
}

// httpProbe drives a ManualConnectivity from periodic HEAD requests.
type httpProbe struct {
	*opqueue.ManualConnectivity
	url      string
	interval time.Duration
	client   *http.Client
	logger   opqueue.Logger
}

func newHTTPProbe(url string, interval time.Duration, logger opqueue.Logger) *httpProbe {
	return &httpProbe{
		ManualConnectivity: opqueue.NewManualConnectivity(false),
		url:                url,
		interval:           interval,
		client:             &http.Client{Timeout: 5 * time.Second},
		logger:             logger,
	}
}

func (p *httpProbe) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.SetOnline(p.check(ctx))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.SetOnline(p.check(ctx))
		}
	}
}

func (p *httpProbe) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.logger.Error("probe request failed", "url", p.url, "err", err)

		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}

// stateStore is the StateExecutor collaborator: a single JSON document
// updated by deferred state mutations.
type stateStore struct {
	mu    sync.Mutex
	state json.RawMessage
}

func (s *stateStore) ExecuteStateUpdate(ctx context.Context, op opqueue.StateUpdate) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if op.Apply != nil {
		next, err := op.Apply(ctx, s.state)
		if err != nil {
			return nil, err
		}
		s.state = next

		return next, nil
	}
	s.state = op.Value

	return op.Value, nil
}

// storageExecutor serves deferred local storage operations from the same
// SQLite database that holds the snapshots, under its own key prefix.
type storageExecutor struct {
	store  opqueue.Storage
	prefix string
}

func (e storageExecutor) ExecuteStorageOp(ctx context.Context, op opqueue.StorageOp) (json.RawMessage, error) {
	key := e.prefix + op.Key
	switch op.Action {
	case opqueue.StorageSet:
		return nil, e.store.Set(ctx, key, op.Value)
	case opqueue.StorageGet:
		value, err := e.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}

		return json.RawMessage(value), nil
	default:
		return nil, e.store.Remove(ctx, key)
	}
}

// apiExecutor replays deferred HTTP calls.
type apiExecutor struct {
	client *http.Client
}

func (e apiExecutor) ExecuteAPICall(ctx context.Context, op opqueue.APICall) (json.RawMessage, error) {
	var body *strings.Reader
	if len(op.Data) > 0 {
		body = strings.NewReader(string(op.Data))
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, op.Method, op.URL, body)
	if err != nil {
		return nil, err
	}
	if len(op.Data) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range op.Headers {
		req.Header.Set(key, value)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("api call failed with status %d", resp.StatusCode)
	}

	return json.RawMessage(fmt.Sprintf(`{"status":%d}`, resp.StatusCode)), nil
}

type enqueueRequest struct {
	Kind     opqueue.Kind    `json:"kind"`
	Priority int             `json:"priority"`
	Spec     json.RawMessage `json:"spec"`
}

func decodeOperation(req enqueueRequest) (opqueue.Operation, error) {
	switch req.Kind {
	case opqueue.KindAPICall:
		var op opqueue.APICall
		if err := json.Unmarshal(req.Spec, &op); err != nil {
			return nil, err
		}

		return op, nil
	case opqueue.KindStateUpdate:
		var op opqueue.StateUpdate
		if err := json.Unmarshal(req.Spec, &op); err != nil {
			return nil, err
		}

		return op, nil
	case opqueue.KindStorage:
		var op opqueue.StorageOp
		if err := json.Unmarshal(req.Spec, &op); err != nil {
			return nil, err
		}

		return op, nil
	default:
		return nil, fmt.Errorf("kind %q cannot be enqueued over HTTP", req.Kind)
	}
}

func main() {
	var (
		dbPath        string
		addr          string
		probeURL      string
		probeInterval time.Duration
		batchSize     int
		retryDelay    time.Duration
		verbose       bool
	)

	flag.StringVar(&dbPath, "db", "opqueue.db", "SQLite database path for snapshots")
	flag.StringVar(&addr, "addr", ":8080", "HTTP listen address")
	flag.StringVar(&probeURL, "probe-url", "https://example.com", "URL probed to detect connectivity")
	flag.DurationVar(&probeInterval, "probe-interval", 10*time.Second, "connectivity probe period")
	flag.IntVar(&batchSize, "batch-size", 10, "entries per processing run")
	flag.DurationVar(&retryDelay, "retry-delay", 5*time.Second, "fixed delay before a failed entry retries")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	logger := stdLogger{logger: log.New(os.Stderr, "opqueue-demo ", log.LstdFlags), verbose: verbose}

	if dbPath == "" {
		logger.Error("missing required flag", "flag", "db")
		flag.Usage()
		os.Exit(exitUsage)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		logger.Error("open database failed", "path", dbPath, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage := sqlite.MustNewStorage(db)
	if err := storage.InitSchema(ctx); err != nil {
		logger.Error("init schema failed", "err", err)
		os.Exit(1)
	}

	probe := newHTTPProbe(probeURL, probeInterval, logger)
	hub := wsevents.NewHub(logger)
	defer hub.Close()

	queue := opqueue.New(
		opqueue.Executors{
			API:     apiExecutor{client: &http.Client{Timeout: 30 * time.Second}},
			State:   &stateStore{},
			Storage: storageExecutor{store: storage, prefix: "local:"},
		},
		opqueue.WithStorage(storage),
		opqueue.WithConnectivity(probe),
		opqueue.WithEvents(hub),
		opqueue.WithLogger(logger),
		opqueue.WithBatchSize(batchSize),
		opqueue.WithRetryDelay(retryDelay),
	)
	queue.Load(ctx)

	go probe.run(ctx)
	go func() {
		if err := queue.Run(ctx); err != nil {
			logger.Error("queue monitor stopped", "err", err)
		}
	}()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /enqueue", func(w http.ResponseWriter, r *http.Request) {
		var req enqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}
		op, err := decodeOperation(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}
		id, err := queue.Enqueue(r.Context(), op, req.Priority)
		if err != nil {
			status := http.StatusInternalServerError
			if opqueue.IsValidation(err) {
				status = http.StatusUnprocessableEntity
			}
			http.Error(w, err.Error(), status)

			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id.String()})
	})

	mux.HandleFunc("POST /process", func(w http.ResponseWriter, r *http.Request) {
		result, err := queue.Process(r.Context(), true)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}
		w.Header().Set("Content-Type", "application/json")
		if result == nil {
			_ = json.NewEncoder(w).Encode(map[string]any{"skipped": true})

			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"processed":  result.Processed,
			"failed":     result.Failed,
			"durationMs": result.Duration.Milliseconds(),
		})
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"online":  probe.Online(),
			"size":    queue.Len(),
			"pending": queue.Pending(),
			"metrics": queue.Metrics(),
			"failed":  len(queue.Failed(0)),
		})
	})

	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "err", err)

			return
		}
		hub.Add(conn)
	})

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", addr, "db", dbPath, "probe", probeURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
