// Package monitoring turns a ringdist run into a web server that reports
// progress, resources and metrics while it runs.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/ringdist/sim"
)

var packageLogger = log.WithField("package", "monitoring")

// Monitor can turn a run into a server and allows external monitoring and
// controlling of the engine.
type Monitor struct {
	registeredLock sync.RWMutex
	engine         sim.Engine
	settings       any

	portNumber      int
	openBrowser     bool
	profileDuration time.Duration

	registry *prometheus.Registry
	metrics  *Metrics

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	m := &Monitor{
		profileDuration: time.Second,
		registry:        prometheus.NewRegistry(),
		metrics:         &Metrics{},
	}

	m.registry.MustRegister(collectors.NewGoCollector())
	m.metrics.Setup(m.registry)

	return m
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		packageLogger.
			WithField("port", portNumber).
			Warn("port not allowed for monitoring, using a random port")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitoring page in a browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// Metrics returns the metrics exported on /metrics. It is also a hook that
// can be attached to annotators, generators and engines.
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// RegisterEngine registers the engine that is used in the run.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.registeredLock.Lock()
	m.engine = e
	m.registeredLock.Unlock()

	e.AcceptHook(m.metrics)
}

// RegisterSettings registers the object reported on /api/settings.
func (m *Monitor) RegisterSettings(settings any) {
	m.registeredLock.Lock()
	defer m.registeredLock.Unlock()

	m.settings = settings
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the routes served by the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics",
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/settings", m.showSettings)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts the monitor as a web server and returns its address.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			packageLogger.WithError(err).Error("monitoring server stopped")
		}
	}()

	fmt.Fprintf(os.Stderr, "Monitoring ringdist with %s\n", url)

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			packageLogger.WithError(err).Warn("cannot open browser")
		}
	}

	return url, nil
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) engineOr404(w http.ResponseWriter) sim.Engine {
	m.registeredLock.RLock()
	e := m.engine
	m.registeredLock.RUnlock()

	if e == nil {
		http.Error(w, "no engine registered", http.StatusNotFound)
	}

	return e
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	if e := m.engineOr404(w); e != nil {
		e.Pause()
		w.WriteHeader(http.StatusOK)
	}
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	if e := m.engineOr404(w); e != nil {
		e.Continue()
		w.WriteHeader(http.StatusOK)
	}
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	e := m.engineOr404(w)
	if e == nil {
		return
	}

	fmt.Fprintf(w, "{\"now\":%.10f}", e.CurrentTime())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressBarStatus, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Status())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (m *Monitor) showSettings(w http.ResponseWriter, _ *http.Request) {
	m.registeredLock.RLock()
	settings := m.settings
	m.registeredLock.RUnlock()

	if settings == nil {
		http.Error(w, "no settings registered", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(settings)
	serializer.SetMaxDepth(1)

	if err := serializer.Serialize(w); err != nil {
		packageLogger.WithError(err).Error("cannot serialize settings")
	}
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(data); err != nil {
		packageLogger.WithError(err).Debug("response not written")
	}
}
