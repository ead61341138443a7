// Package config parses and validates the daemon's line-oriented
// configuration file into an immutable Config.
//
// The grammar is bespoke (not YAML/JSON): blank lines and lines starting
// with "//" are ignored, every other line is whitespace-split into a
// directive followed by its arguments. This package hand-parses that
// grammar with bufio.Scanner, but every rejection is a typed
// *errors.ConfigError, never a bare panic or a message printed straight to
// stdout.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	rerr "github.com/kelshaw/ripd/internal/errors"
	"github.com/kelshaw/ripd/internal/table"
)

const (
	minPort = 1024
	maxPort = 64000

	minRouterID = 1
	maxRouterID = 64000

	defaultUpdatePeriodSeconds = 30
)

// Config is the fully validated, immutable result of parsing a
// configuration file. Nothing downstream re-validates these fields.
type Config struct {
	RouterID           uint32
	InputPorts         []int
	OutputPort         int
	Neighbours         []table.Neighbour
	UpdatePeriodSeconds int
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &rerr.ConfigError{Message: fmt.Sprintf("cannot open %s: %v", path, err)}
	}
	defer f.Close()
	return Parse(f)
}

// Parse validates the configuration read from r. Exported separately from
// Load so tests can feed in-memory readers without touching the filesystem.
func Parse(r io.Reader) (*Config, error) {
	seen := make(map[string]int) // directive -> line first seen on
	cfg := &Config{UpdatePeriodSeconds: defaultUpdatePeriodSeconds}
	haveUpdatePeriod := false

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}

		fields := strings.Fields(text)
		directive := fields[0]
		args := fields[1:]

		if prev, ok := seen[directive]; ok {
			return nil, &rerr.ConfigError{Directive: directive, Line: line, Message: fmt.Sprintf("repeated; already set at line %d", prev)}
		}
		seen[directive] = line

		switch directive {
		case "router-id":
			id, err := parseRouterID(args, line)
			if err != nil {
				return nil, err
			}
			cfg.RouterID = id

		case "input-ports":
			ports, err := parsePortList(args, "input-ports", line)
			if err != nil {
				return nil, err
			}
			cfg.InputPorts = ports

		case "output-port":
			port, err := parseSinglePort(args, "output-port", line)
			if err != nil {
				return nil, err
			}
			cfg.OutputPort = port

		case "outputs":
			neighbours, err := parseOutputs(args, line)
			if err != nil {
				return nil, err
			}
			cfg.Neighbours = neighbours

		case "update-period":
			seconds, err := parseUpdatePeriod(args, line)
			if err != nil {
				return nil, err
			}
			cfg.UpdatePeriodSeconds = seconds
			haveUpdatePeriod = true

		default:
			return nil, &rerr.ConfigError{Directive: directive, Line: line, Message: "unrecognized directive"}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &rerr.ConfigError{Message: fmt.Sprintf("reading config: %v", err)}
	}
	_ = haveUpdatePeriod // update-period is optional; default already set

	for _, mandatory := range []string{"router-id", "input-ports", "outputs", "output-port"} {
		if _, ok := seen[mandatory]; !ok {
			return nil, &rerr.ConfigError{Directive: mandatory, Message: "missing mandatory directive"}
		}
	}

	if err := validateCrossParameters(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseRouterID(args []string, line int) (uint32, error) {
	if len(args) != 1 {
		return 0, &rerr.ConfigError{Directive: "router-id", Line: line, Message: "expects exactly one integer"}
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id < minRouterID || id > maxRouterID {
		return 0, &rerr.ConfigError{Directive: "router-id", Line: line, Message: fmt.Sprintf("must be an integer in [%d, %d]", minRouterID, maxRouterID)}
	}
	return uint32(id), nil
}

func parsePortList(args []string, directive string, line int) ([]int, error) {
	if len(args) == 0 {
		return nil, &rerr.ConfigError{Directive: directive, Line: line, Message: "expects one or more ports"}
	}
	ports := make([]int, 0, len(args))
	for _, a := range args {
		p, err := strconv.Atoi(a)
		if err != nil || p < minPort || p > maxPort {
			return nil, &rerr.ConfigError{Directive: directive, Line: line, Message: fmt.Sprintf("port %q must be an integer in [%d, %d]", a, minPort, maxPort)}
		}
		ports = append(ports, p)
	}
	return ports, nil
}

func parseSinglePort(args []string, directive string, line int) (int, error) {
	ports, err := parsePortList(args, directive, line)
	if err != nil {
		return 0, err
	}
	if len(ports) != 1 {
		return 0, &rerr.ConfigError{Directive: directive, Line: line, Message: "expects exactly one port"}
	}
	return ports[0], nil
}

// parseOutputs parses one or more "P-M-I" tokens: neighbour input port,
// link metric, neighbour router id.
func parseOutputs(args []string, line int) ([]table.Neighbour, error) {
	if len(args) == 0 {
		return nil, &rerr.ConfigError{Directive: "outputs", Line: line, Message: "expects one or more P-M-I tokens"}
	}

	neighbours := make([]table.Neighbour, 0, len(args))
	for _, tok := range args {
		parts := strings.Split(tok, "-")
		if len(parts) != 3 {
			return nil, &rerr.ConfigError{Directive: "outputs", Line: line, Message: fmt.Sprintf("token %q is not P-M-I", tok)}
		}

		port, err := strconv.Atoi(parts[0])
		if err != nil || port < minPort || port > maxPort {
			return nil, &rerr.ConfigError{Directive: "outputs", Line: line, Message: fmt.Sprintf("token %q: port must be in [%d, %d]", tok, minPort, maxPort)}
		}
		metric, err := strconv.Atoi(parts[1])
		if err != nil || metric < 1 {
			return nil, &rerr.ConfigError{Directive: "outputs", Line: line, Message: fmt.Sprintf("token %q: link metric must be >= 1", tok)}
		}
		id, err := strconv.Atoi(parts[2])
		if err != nil || id < minRouterID || id > maxRouterID {
			return nil, &rerr.ConfigError{Directive: "outputs", Line: line, Message: fmt.Sprintf("token %q: neighbour id must be in [%d, %d]", tok, minRouterID, maxRouterID)}
		}

		neighbours = append(neighbours, table.Neighbour{
			ID:        uint32(id),
			LinkCost:  uint32(metric),
			InputPort: port,
		})
	}
	return neighbours, nil
}

func parseUpdatePeriod(args []string, line int) (int, error) {
	if len(args) != 1 {
		return 0, &rerr.ConfigError{Directive: "update-period", Line: line, Message: "expects exactly one positive integer"}
	}
	seconds, err := strconv.Atoi(args[0])
	if err != nil || seconds <= 0 {
		return 0, &rerr.ConfigError{Directive: "update-period", Line: line, Message: "must be a positive integer"}
	}
	return seconds, nil
}

func validateCrossParameters(cfg *Config) error {
	ports := make(map[int]string, len(cfg.InputPorts)+len(cfg.Neighbours)+1)
	for _, p := range cfg.InputPorts {
		if owner, ok := ports[p]; ok {
			return &rerr.ConfigError{Message: fmt.Sprintf("port %d used by both input-ports and %s", p, owner)}
		}
		ports[p] = "input-ports"
	}
	if owner, ok := ports[cfg.OutputPort]; ok {
		return &rerr.ConfigError{Message: fmt.Sprintf("port %d used by both output-port and %s", cfg.OutputPort, owner)}
	}
	ports[cfg.OutputPort] = "output-port"

	for _, n := range cfg.Neighbours {
		if owner, ok := ports[n.InputPort]; ok {
			return &rerr.ConfigError{Message: fmt.Sprintf("port %d used by both a neighbour in outputs and %s", n.InputPort, owner)}
		}
		ports[n.InputPort] = fmt.Sprintf("outputs (neighbour %d)", n.ID)

		if n.ID == cfg.RouterID {
			return &rerr.ConfigError{Directive: "outputs", Message: fmt.Sprintf("neighbour id %d equals this router's own router-id", n.ID)}
		}
	}

	return nil
}
