package config

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coreman2200/themeparkwaits/internal/model"
	"gopkg.in/yaml.v3"
)

var ErrUnknownScrollSpeed = errors.New("unknown scroll speed")

var scrollSpeeds = map[string]time.Duration{
	"Slow":   60 * time.Millisecond,
	"Medium": 40 * time.Millisecond,
	"Fast":   20 * time.Millisecond,
}

func ParseScrollSpeed(s string) (time.Duration, error) {
	if d, ok := scrollSpeeds[s]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScrollSpeed, s)
}

// boolKeys may arrive as "true"/"false" from the settings form.
var boolKeys = map[string]bool{"group_by_park": true, "skip_closed": true, "skip_meet": true}

type SPI struct {
	Port    string `yaml:"port"`     // "" picks the first port
	SpeedHz int    `yaml:"speed_hz"` // e.g. 2500000
}

type Hardware struct {
	Driver     string  `yaml:"driver"` // "spi" | "console" | "sim"
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Serpentine bool    `yaml:"serpentine"`
	BudgetmA   float64 `yaml:"budget_ma"`
	WhiteCap   float64 `yaml:"white_cap"`
	SPI        SPI     `yaml:"spi,omitempty"`
}

func DefaultHardware() Hardware {
	return Hardware{Driver: "sim", Width: 64, Height: 32, WhiteCap: 0.85}
}

// Settings is the user configuration: a flat key/value set kept the way the
// settings file has it, plus the hardware section.
type Settings struct {
	mu       sync.RWMutex
	values   map[string]any
	Hardware Hardware
}

func Defaults() map[string]any {
	return map[string]any{
		"domain_name":          "themeparkwaits",
		"brightness_scale":     "0.5",
		"skip_closed":          false,
		"skip_meet":            false,
		"default_color":        "0xffff00",
		"ride_name_color":      "0x0000ff",
		"ride_wait_time_color": "0xfdf5e6",
		"scroll_speed":         "Medium",
		"display_mode":         "all_rides",
		"sort_mode":            "alphabetical",
		"group_by_park":        false,
	}
}

// New fills in defaults for any key values lacks.
func New(values map[string]any) *Settings {
	s := &Settings{values: Defaults(), Hardware: DefaultHardware()}
	maps.Copy(s.values, values)
	return s
}

type file struct {
	Hardware *Hardware `yaml:"hardware"`
}

func Load(path string) (*Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Settings, error) {
	var values map[string]any
	if err := yaml.Unmarshal(b, &values); err != nil {
		return nil, err
	}
	delete(values, "hardware")
	s := New(values)
	if err := yaml.Unmarshal(b, &file{Hardware: &s.Hardware}); err != nil {
		return nil, fmt.Errorf("hardware: %w", err)
	}
	return s, nil
}

func Save(path string, s *Settings) error {
	out := s.Snapshot()
	out["hardware"] = s.HardwareSettings()
	b, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}

	// write to a temp file in the same directory, then rename over path so
	// the watcher never sees a half-written file
	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-tmp-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(b); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}

// Get returns the value for key, or def when unset. String booleans are
// coerced for the flag keys.
func (s *Settings) Get(key string, def any) any {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	if !ok || v == nil {
		return def
	}
	if str, isStr := v.(string); isStr && boolKeys[key] {
		return strings.EqualFold(str, "true")
	}
	return v
}

func (s *Settings) Set(key string, v any) {
	s.mu.Lock()
	s.values[key] = v
	s.mu.Unlock()
}

// Update sets every key in values.
func (s *Settings) Update(values map[string]any) {
	s.mu.Lock()
	maps.Copy(s.values, values)
	s.mu.Unlock()
}

// Replace swaps in values over the defaults, and hw. Keys values lacks go
// back to their defaults or are dropped.
func (s *Settings) Replace(values map[string]any, hw Hardware) {
	next := Defaults()
	maps.Copy(next, values)
	s.mu.Lock()
	s.values = next
	s.Hardware = hw
	s.mu.Unlock()
}

// HardwareSettings reads the hardware section under the lock Replace takes.
func (s *Settings) HardwareSettings() Hardware {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Hardware
}

func (s *Settings) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Equal reports whether o would be saved identically.
func (s *Settings) Equal(o *Settings) bool {
	a, errA := yaml.Marshal(s.Snapshot())
	b, errB := yaml.Marshal(o.Snapshot())
	return errA == nil && errB == nil && bytes.Equal(a, b) && s.HardwareSettings() == o.HardwareSettings()
}

func (s *Settings) String(key, def string) string {
	switch v := s.Get(key, def).(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

func (s *Settings) Bool(key string, def bool) bool {
	if v, ok := s.Get(key, def).(bool); ok {
		return v
	}
	return def
}

func (s *Settings) Int(key string, def int) int {
	if n, err := toInt(s.Get(key, def)); err == nil {
		return n
	}
	return def
}

func (s *Settings) Float(key string, def float64) float64 {
	switch v := s.Get(key, def).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (s *Settings) Brightness() float64 {
	return s.Float("brightness_scale", 0.5)
}

// ScrollSpeed is the delay per pixel; an unknown setting gives Medium.
func (s *Settings) ScrollSpeed() time.Duration {
	d, err := ParseScrollSpeed(s.String("scroll_speed", "Medium"))
	if err != nil {
		return scrollSpeeds["Medium"]
	}
	return d
}

func (s *Settings) SortMode() string  { return s.String("sort_mode", "alphabetical") }
func (s *Settings) GroupByPark() bool { return s.Bool("group_by_park", false) }
func (s *Settings) SkipMeet() bool    { return s.Bool("skip_meet", false) }
func (s *Settings) SkipClosed() bool  { return s.Bool("skip_closed", false) }

func (s *Settings) Vacation() model.Vacation {
	return model.Vacation{
		Name:  s.String("next_visit", ""),
		Year:  s.Int("next_visit_year", 0),
		Month: s.Int("next_visit_month", 0),
		Day:   s.Int("next_visit_day", 0),
	}
}

func (s *Settings) SetVacation(v model.Vacation) {
	s.Update(map[string]any{
		"next_visit":       v.Name,
		"next_visit_year":  v.Year,
		"next_visit_month": v.Month,
		"next_visit_day":   v.Day,
	})
}

// SelectedParkIDs accepts a list or a comma separated string.
func (s *Settings) SelectedParkIDs() []int {
	var raw []any
	switch v := s.Get("selected_park_ids", nil).(type) {
	case []any:
		raw = v
	case []int:
		return append([]int(nil), v...)
	case string:
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				raw = append(raw, f)
			}
		}
	case int:
		raw = []any{v}
	}
	ids := make([]int, 0, len(raw))
	for _, r := range raw {
		if n, err := toInt(r); err == nil && n > 0 {
			ids = append(ids, n)
		}
	}
	return ids
}

func (s *Settings) SetSelectedParkIDs(ids []int) {
	s.Set("selected_park_ids", append([]int(nil), ids...))
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	}
	return 0, fmt.Errorf("unexpected %T", v)
}
