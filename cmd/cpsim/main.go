package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cpsim/internal/atg"
	"cpsim/internal/config"
	"cpsim/internal/configstore"
	"cpsim/internal/dispatch"
	"cpsim/internal/logger"
	"cpsim/internal/messages"
	"cpsim/internal/ocppj"
	"cpsim/internal/session"
	"cpsim/internal/station"
	"cpsim/internal/status"
	"cpsim/internal/txn"
)

// watchPollInterval is how often the template and authorization files are
// checked for changes. Polling (rather than an OS-level notify mechanism)
// since nothing in the dependency stack provides one.
const watchPollInterval = 2 * time.Second

// generatorHolder lets the reset hook and the template watcher both swap
// the running ATG instance without racing: Reset and a template reload can
// land on the same station from different goroutines (the session
// controller's own goroutine and the watcher's).
type generatorHolder struct {
	mu  sync.Mutex
	gen *atg.Generator
}

func (h *generatorHolder) get() *atg.Generator {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gen
}

func (h *generatorHolder) set(g *atg.Generator) {
	h.mu.Lock()
	h.gen = g
	h.mu.Unlock()
}

// stationHandle bundles the pieces a fully wired station exposes to main:
// the session controller (for the status endpoint) and a terminal stop
// function closing over everything Reset also stops.
type stationHandle struct {
	controller *session.Controller
	stop       func()
}

func main() {
	configPath := flag.String("config", "simulator.yml", "path to the simulator config file")
	templatePath := flag.String("template", "template.json", "path to the station template file")
	count := flag.Int("count", 1, "number of simulated stations to run")
	flag.Parse()

	log := logger.NewLogger(time.Local)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("loading simulator config", err)
		os.Exit(1)
	}
	if cfg.IsDebug != nil {
		log.SetDebugMode(*cfg.IsDebug)
	}

	tmpl, err := loadTemplate(*templatePath)
	if err != nil {
		log.Error("loading station template", err)
		os.Exit(1)
	}

	handles := make([]*stationHandle, 0, *count)
	for index := 0; index < *count; index++ {
		handles = append(handles, startStation(tmpl, *templatePath, index, cfg, log))
	}

	if cfg.Status.Enabled {
		controllers := make([]*session.Controller, len(handles))
		for i, h := range handles {
			controllers[i] = h.controller
		}
		go serveStatus(cfg.Status.BindIP+":"+cfg.Status.Port, controllers, log)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Debug("shutting down")
	for _, h := range handles {
		h.stop()
	}
}

func loadTemplate(path string) (*station.StationTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tmpl station.StationTemplate
	if err := json.Unmarshal(data, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// startStation wires one station's config store, connector table, RPC
// transport, dispatcher and session controller together, launches its
// connection loop in its own goroutine, and starts the template/auth-list
// file watcher.
func startStation(tmpl *station.StationTemplate, templatePath string, index int, cfg *config.Config, log logger.LogHandler) *stationHandle {
	cs := configstore.NewStore(log)
	seedConfiguration(cs, tmpl)

	st := station.NewStation(tmpl, index, cs, log)

	transport := ocppj.NewTransport(st.ChargingStationId, time.Duration(cfg.Rpc.TimeoutSeconds)*time.Second, nil, log)
	controller := session.NewController(
		st, transport, cs, log,
		tmpl.SupervisionURL, index,
		time.Duration(cfg.Rpc.DefaultBootRetrySeconds)*time.Second,
		time.Duration(tmpl.ConnectionTimeoutOrDefault())*time.Second,
		tmpl.RegistrationMaxRetries, tmpl.AutoReconnectMaxRetries, tmpl.ReconnectExponentialDelay,
	)
	transport.SetIsRegistered(controller.IsRegistered)

	txnManager := txn.NewManager(st, tmpl, transport, cs, log)
	st.SetNotifier(txnManager)

	authList, err := station.LoadLocalAuthList(tmpl.AuthorizationFile)
	if err != nil {
		log.Error("loading local authorization list", err)
		authList = &station.LocalAuthList{}
	}

	generator := &generatorHolder{}
	generator.set(atg.NewGenerator(st, tmpl.AutomaticTransactionGenerator, txnManager, log))
	if tmpl.AutomaticTransactionGenerator.StopOnConnectionFailure {
		controller.SetDisconnectHook(func() { generator.get().Stop() })
	}

	disp := dispatch.NewDispatcher(st, cs, log)
	disp.SetLocalAuthList(authList)
	disp.SetTransactionHooks(txnManager.StartTransaction, txnManager.StopTransaction)
	disp.SetResetHook(func(resetType messages.ResetType) {
		stopStation(st, controller, generator.get(), txnManager, log, string(resetType)+"Reset")
		time.Sleep(time.Duration(tmpl.ResetTimeOrDefault()) * time.Second)
		generator.set(atg.NewGenerator(st, tmpl.AutomaticTransactionGenerator, txnManager, log))
		startStationLoop(st, controller, generator.get(), !tmpl.DistributeStationsToTenantsEqually)
	})
	disp.SetConfigChangeHook(func(key string) {
		switch {
		case strings.EqualFold(key, "HeartbeatInterval") || strings.EqualFold(key, "HeartBeatInterval"):
			controller.RestartHeartbeat()
		case strings.EqualFold(key, "WebSocketPingInterval"):
			controller.RestartPing()
		}
	})
	transport.SetRequestHandler(disp.Handle)

	startStationLoop(st, controller, generator.get(), !tmpl.DistributeStationsToTenantsEqually)
	go watchTemplateAndAuthList(templatePath, tmpl, st, cs, authList, index, generator, txnManager, log)

	return &stationHandle{
		controller: controller,
		stop: func() {
			stopStation(st, controller, generator.get(), txnManager, log, "shutdown")
		},
	}
}

// watchTemplateAndAuthList is the file watcher SPEC_FULL.md §2 item 9
// requires outside the core: it polls the template file and, if present,
// the authorization file for changes, and reloads the running station
// through Station.ReloadTemplate / LocalAuthList.ReloadAuthList — the
// entry points the core exposes for exactly this purpose. A template
// change also re-evaluates the ATG: its enable flag and timing may have
// changed, so the running generator is stopped and replaced.
func watchTemplateAndAuthList(templatePath string, tmpl *station.StationTemplate, st *station.Station, cs *configstore.Store, authList *station.LocalAuthList, index int, generator *generatorHolder, txnManager *txn.Manager, log logger.LogHandler) {
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	templateSeen := modTime(templatePath)
	authListSeen := modTime(tmpl.AuthorizationFile)

	for range ticker.C {
		if m := modTime(templatePath); !m.IsZero() && !m.Equal(templateSeen) {
			templateSeen = m
			reloaded, err := loadTemplate(templatePath)
			if err != nil {
				log.Error("reloading station template", err)
				continue
			}
			tmpl = reloaded
			st.ReloadTemplate(tmpl, index, cs)
			generator.get().Stop()
			generator.set(atg.NewGenerator(st, tmpl.AutomaticTransactionGenerator, txnManager, log))
			generator.get().Start()
			log.Debug("station template reloaded")
		}

		if tmpl.AuthorizationFile == "" {
			continue
		}
		if m := modTime(tmpl.AuthorizationFile); !m.IsZero() && !m.Equal(authListSeen) {
			authListSeen = m
			if err := authList.ReloadAuthList(tmpl.AuthorizationFile); err != nil {
				log.Error("reloading local authorization list", err)
			} else {
				log.Debug("local authorization list reloaded")
			}
		}
	}
}

// modTime returns path's modification time, or the zero time if path is
// empty or cannot be stat'd (missing file, permission error) — either way
// watchTemplateAndAuthList treats that as "no change to report".
func modTime(path string) time.Time {
	if path == "" {
		return time.Time{}
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// stopStation is the authoritative terminal path shared by Reset and final
// shutdown: stop the transaction generator, then stop every connector's
// still-running transaction directly (whether or not the generator was
// enabled, so a generator-started transaction may see a second stop
// attempt), mark every connector Unavailable, discard the stale boot
// response, and close the socket. stop is idempotent: calling it twice in a row is harmless since
// Controller.Stop and Station.MarkStopped both tolerate repeat calls.
func stopStation(st *station.Station, controller *session.Controller, generator *atg.Generator, txnManager *txn.Manager, log logger.LogHandler, reason string) {
	log.Debug("stopping station: " + reason)
	generator.Stop()
	for id, c := range st.Connectors {
		if id != 0 && c.HasActiveTransaction() {
			if !txnManager.StopTransaction(*c.TransactionId, messages.ReasonOther) {
				log.Warn(fmt.Sprintf("connector %d did not stop cleanly during %s", id, reason))
			}
		}
	}
	st.MarkStopped()
	controller.Stop()
}

// startStationLoop re-arms a controller and its generator after a stop
// (Reset) or for the very first run, clearing HasStopped and launching the
// connection loop in its own goroutine.
func startStationLoop(st *station.Station, controller *session.Controller, generator *atg.Generator, random bool) {
	st.MarkStarted()
	controller.Reopen()
	generator.Start()
	go controller.Run(random)
}

// seedConfiguration populates the informational keys every station reports
// from its template, ahead of the first GetConfiguration. All of them are
// writable; the read-only NumberOfConnectors key is added by
// station.NewStation instead.
func seedConfiguration(cs *configstore.Store, tmpl *station.StationTemplate) {
	cs.Add("HeartbeatInterval", "600", false, true, false)
	cs.Add("HeartBeatInterval", "600", false, true, false)
	cs.Add("MeterValueSampleInterval", "60", false, true, false)
	cs.Add("AuthorizeRemoteTxRequests", boolString(tmpl.AuthorizeRemoteTxRequests), false, true, false)
	cs.Add("LocalAuthListEnabled", boolString(tmpl.AuthorizationFile != ""), false, true, false)
	for key, value := range tmpl.Configuration {
		cs.Add(key, value, false, true, false)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func serveStatus(addr string, controllers []*session.Controller, log logger.LogHandler) {
	router := status.NewRouter(controllers)
	log.Debug("status endpoint listening on " + addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Error("status endpoint", err)
	}
}
