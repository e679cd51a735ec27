// Package platform inspects the host before the daemon claims the sensors.
package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrAutopilotRunning is returned when an autopilot already owns the sensors.
var ErrAutopilotRunning = errors.New("autopilot is running")

// autopilotNames are matched against process names.
var autopilotNames = []string{"arducopter", "arduplane", "ardurover", "ardusub", "ardupilot", "apm"}

// ProcessInfo is the subset of a process the check needs.
type ProcessInfo struct {
	PID  int32
	Name string
}

// ProcessLister enumerates running processes.
type ProcessLister func(ctx context.Context) ([]ProcessInfo, error)

// SystemProcesses lists the host's processes through gopsutil.
func SystemProcesses(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// The process may have exited while iterating.
			continue
		}
		infos = append(infos, ProcessInfo{PID: p.Pid, Name: name})
	}
	return infos, nil
}

// CheckAutopilot fails with ErrAutopilotRunning when a process looks like
// an ArduPilot binary. Reading the sensors while the autopilot drives them
// corrupts both.
func CheckAutopilot(ctx context.Context, list ProcessLister) error {
	if list == nil {
		list = SystemProcesses
	}
	procs, err := list(ctx)
	if err != nil {
		return err
	}

	for _, p := range procs {
		if isAutopilot(p.Name) {
			return fmt.Errorf("%w: %s (pid %d)", ErrAutopilotRunning, p.Name, p.PID)
		}
	}
	return nil
}

func isAutopilot(name string) bool {
	name = strings.ToLower(name)
	for _, a := range autopilotNames {
		if name == a || strings.HasPrefix(name, a+"-") || (len(a) > 3 && strings.Contains(name, a)) {
			return true
		}
	}
	return false
}
