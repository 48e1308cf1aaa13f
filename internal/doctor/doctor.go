// Package doctor runs readiness diagnostics for config, terminal, and the coordinator.
package doctor

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/rbright/panelfront/internal/config"
	"github.com/rbright/panelfront/internal/transport"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes config and connectivity checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{checkConfig(cfg)}

	checks = append(checks, checkModule(cfg.Config.Module))

	if cfg.Config.Render.Enable && !cfg.Config.Render.Plain {
		checks = append(checks, checkEnv("TERM", func(v string) bool {
			v = strings.TrimSpace(v)
			return v != "" && v != "dumb"
		}, "terminal supports in-place redraw", "TERM is empty or dumb; set render.plain=true"))
	}

	address := checkAddress(cfg.Config.Coordinator)
	checks = append(checks, address)
	if address.Pass {
		checks = append(checks, checkReachable(ctx, cfg.Config.Coordinator))
	}

	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	if !cfg.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", cfg.Path)}
	}
	message := fmt.Sprintf("loaded %q", cfg.Path)
	if n := len(cfg.Warnings); n > 0 {
		message = fmt.Sprintf("%s (%d warnings)", message, n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkModule requires a name; any name other than the front-end one still
// passes, but the coordinator will not route front-end traffic to it.
func checkModule(module string) Check {
	switch strings.TrimSpace(module) {
	case "":
		return Check{Name: "module", Pass: false, Message: "module name is empty"}
	case config.Default().Module:
		return Check{Name: "module", Pass: true, Message: fmt.Sprintf("announcing as %q", module)}
	default:
		return Check{Name: "module", Pass: true, Message: fmt.Sprintf("announcing as %q (non-default)", module)}
	}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

func checkAddress(cfg config.CoordinatorConfig) Check {
	if strings.TrimSpace(cfg.Host) == "" {
		return Check{Name: "coordinator.address", Pass: false, Message: "coordinator.host is empty"}
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Check{Name: "coordinator.address", Pass: false, Message: fmt.Sprintf("port %d out of range", cfg.Port)}
	}
	addr := cfg.Address()
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return Check{Name: "coordinator.address", Pass: false, Message: err.Error()}
	}
	return Check{Name: "coordinator.address", Pass: true, Message: addr}
}

// checkReachable opens and immediately closes a coordinator connection. The
// coordinator sees a module that connects and leaves without announcing.
func checkReachable(ctx context.Context, cfg config.CoordinatorConfig) Check {
	conn, err := transport.Dial(ctx, cfg.Address(), cfg.DialTimeout)
	if err != nil {
		return Check{Name: "coordinator.reachable", Pass: false, Message: err.Error()}
	}
	_ = conn.Close()
	return Check{Name: "coordinator.reachable", Pass: true, Message: fmt.Sprintf("connected to %s", cfg.Address())}
}
