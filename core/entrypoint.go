package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"time"

	"github.com/encodeous/strand/perf"
	"github.com/encodeous/strand/state"
	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

func ReadNodeConfig(nodePath string) (*state.LocalCfg, error) {
	var nodeCfg state.LocalCfg
	file, err := os.ReadFile(nodePath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &nodeCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", nodePath, err)
	}
	return &nodeCfg, nil
}

// LoadNodeConfig reads, expands and validates the node config
func LoadNodeConfig(nodePath string) (*state.LocalCfg, error) {
	cfg, err := ReadNodeConfig(nodePath)
	if err != nil {
		return nil, err
	}
	state.ExpandLocalConfig(cfg)
	if err := state.NodeConfigValidator(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds the node logger. Console output goes to w, and if LogPath is set the same records
// are written to a rotated log file. The returned closer closes the log file.
func NewLogger(ncfg state.LocalCfg, logLevel slog.Level, w io.Writer) (*slog.Logger, io.Closer, error) {
	handlers := make([]slog.Handler, 0)
	if w != nil {
		handlers = append(handlers,
			tint.NewHandler(w, &tint.Options{
				Level:        logLevel,
				AddSource:    false,
				CustomPrefix: string(ncfg.Id),
				ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
					if attr.Key == "time" {
						return slog.Attr{}
					}
					return attr
				},
			}))
	}

	var closer io.Closer = io.NopCloser(nil)
	if ncfg.LogPath != "" {
		err := os.MkdirAll(filepath.Dir(ncfg.LogPath), 0700)
		if err != nil {
			return nil, nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   ncfg.LogPath,
			MaxSize:    ncfg.LogMaxSizeMB,
			MaxBackups: ncfg.LogMaxBackups,
			MaxAge:     ncfg.LogMaxAgeDays,
		}
		closer = rotator
		handlers = append(handlers, slog.NewTextHandler(rotator, &slog.HandlerOptions{Level: logLevel}).
			WithAttrs([]slog.Attr{slog.String("node", string(ncfg.Id))}))
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

func initModules(s *state.State) error {
	var modules []state.NyModule
	modules = append(modules, &Events{})
	modules = append(modules, &LinkEstimator{})
	modules = append(modules, &Admission{})
	modules = append(modules, &Topology{})
	modules = append(modules, &Forwarder{})
	modules = append(modules, &Lifecycle{})
	modules = append(modules, &Inbound{})

	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return fmt.Errorf("init %T: %w", module, err)
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > state.SlowDispatch {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Info("stopped main loop", "reason", context.Cause(s.Context).Error())
	Stop(s)
	return nil
}

// Stop cancels the node and cleans up every module. Dispatches racing with Stop are abandoned.
func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Debug("cleaning up modules")
	for _, module := range modulesInReverse(s) {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", reflect.TypeOf(module).String(), "error", err)
		}
	}
	s.Log.Info("stopped")
}

func modulesInReverse(s *state.State) []state.NyModule {
	order := []string{
		reflect.TypeFor[*Inbound]().String(),
		reflect.TypeFor[*Lifecycle]().String(),
		reflect.TypeFor[*Forwarder]().String(),
		reflect.TypeFor[*Topology]().String(),
		reflect.TypeFor[*Admission]().String(),
		reflect.TypeFor[*LinkEstimator]().String(),
		reflect.TypeFor[*Events]().String(),
	}
	res := make([]state.NyModule, 0, len(s.Modules))
	for _, name := range order {
		if m, ok := s.Modules[name]; ok {
			res = append(res, m)
		}
	}
	return res
}
