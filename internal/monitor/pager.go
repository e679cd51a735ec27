package monitor

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"navtelemetry/internal/codec"
)

// pagerOrder is the fixed line order of the console pager. Other sections
// follow alphabetically.
var pagerOrder = []string{"IMU/MPU9250", "IMU/LSM9DS1", "ADC", "Barometer", "GPS", "RCInput", "RCInput/axes"}

const clearScreen = "\033[2J\033[1;1H"

// Pager keeps the newest message of every section and redraws them as a
// terminal page.
type Pager struct {
	mu       sync.Mutex
	sections map[string]codec.Message
	clear    bool
}

// NewPager creates a pager. With clear set every Render starts by clearing
// the terminal.
func NewPager(clear bool) *Pager {
	return &Pager{sections: make(map[string]codec.Message), clear: clear}
}

// Update records msg received on topic.
func (p *Pager) Update(topic string, msg codec.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sections[Section(topic, msg)] = msg
}

// Render writes the page. Fields of a section are printed sorted by key.
func (p *Pager) Render(w io.Writer, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	if p.clear {
		b.WriteString(clearScreen)
	}
	fmt.Fprintf(&b, "===== Sensor Readings at %d =====\n", now.Unix())

	for _, name := range p.order() {
		msg := p.sections[name]
		if msg.Unavailable {
			fmt.Fprintf(&b, "%s: unavailable\n", name)
			continue
		}
		fields := msg.Map()
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(name + ": ")
		for _, k := range keys {
			b.WriteString(k + "=" + fields[k] + " ")
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// order returns the known sections first, then the rest sorted. Called with
// mu held.
func (p *Pager) order() []string {
	known := make(map[string]bool, len(pagerOrder))
	var names []string
	for _, name := range pagerOrder {
		known[name] = true
		if _, ok := p.sections[name]; ok {
			names = append(names, name)
		}
	}

	var extra []string
	for name := range p.sections {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}
