package calendar

import (
	"sort"
	"strings"
	"sync"
	"time"

	"calmgr/internal/model"
)

// DefaultName is the calendar Default creates on first use.
const DefaultName = "default"

// Manager is a registry of named calendars. Its methods are safe for
// concurrent use; Update and View run a callback while holding the registry
// lock so callers can operate on a calendar without racing other writers.
type Manager struct {
	mu          sync.RWMutex
	calendars   map[string]*Calendar
	defaultZone *time.Location
}

// NewManager returns an empty registry. defaultZone is used by Default; nil
// means UTC.
func NewManager(defaultZone *time.Location) *Manager {
	if defaultZone == nil {
		defaultZone = time.UTC
	}
	return &Manager{
		calendars:   make(map[string]*Calendar),
		defaultZone: defaultZone,
	}
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.Validationf("calendar name must not be empty")
	}
	return name, nil
}

// Names lists the registered calendar names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.calendars))
	for name := range m.calendars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) lookup(name string) (*Calendar, error) {
	cal, ok := m.calendars[strings.TrimSpace(name)]
	if !ok {
		return nil, model.NotFoundf("calendar %q not found", name)
	}
	return cal, nil
}

// Get returns the named calendar.
func (m *Manager) Get(name string) (*Calendar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookup(name)
}

// Create registers an empty calendar.
func (m *Manager) Create(name string, zone *time.Location) (*Calendar, error) {
	cal := New(zone)
	if err := m.Add(name, cal); err != nil {
		return nil, err
	}
	return cal, nil
}

// Add registers an existing calendar under name.
func (m *Manager) Add(name string, cal *Calendar) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	if cal == nil {
		return model.Validationf("calendar %q must not be nil", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calendars[name]; ok {
		return model.Duplicatef("calendar %q already exists", name)
	}
	m.calendars[name] = cal
	return nil
}

// Remove drops the named calendar.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.lookup(name); err != nil {
		return err
	}
	delete(m.calendars, strings.TrimSpace(name))
	return nil
}

// Rename moves a calendar to a new name.
func (m *Manager) Rename(oldName, newName string) error {
	newName, err := normalizeName(newName)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cal, err := m.lookup(oldName)
	if err != nil {
		return err
	}
	oldName = strings.TrimSpace(oldName)
	if oldName == newName {
		return nil
	}
	if _, ok := m.calendars[newName]; ok {
		return model.Duplicatef("calendar %q already exists", newName)
	}
	delete(m.calendars, oldName)
	m.calendars[newName] = cal
	return nil
}

// SetTimeZone replaces the named calendar with a copy shifted to zone. On
// error the registered calendar is unchanged.
func (m *Manager) SetTimeZone(name string, zone *time.Location) (*Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cal, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	shifted, err := cal.SetTimeZone(zone)
	if err != nil {
		return nil, err
	}
	m.calendars[strings.TrimSpace(name)] = shifted
	return shifted, nil
}

// Default returns the calendar named DefaultName, creating it if needed.
func (m *Manager) Default() *Calendar {
	m.mu.Lock()
	defer m.mu.Unlock()
	cal, ok := m.calendars[DefaultName]
	if !ok {
		cal = New(m.defaultZone)
		m.calendars[DefaultName] = cal
	}
	return cal
}

// Update runs fn on the named calendar under the write lock.
func (m *Manager) Update(name string, fn func(*Calendar) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cal, err := m.lookup(name)
	if err != nil {
		return err
	}
	return fn(cal)
}

// View runs fn on the named calendar under the read lock. fn must not
// modify the calendar.
func (m *Manager) View(name string, fn func(*Calendar) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cal, err := m.lookup(name)
	if err != nil {
		return err
	}
	return fn(cal)
}

// CopyEvents copies the events of calendar src starting within [start, end]
// into calendar dst, shifted so that start lands on newStart.
func (m *Manager) CopyEvents(src, dst string, start, end, newStart model.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, err := m.lookup(src)
	if err != nil {
		return 0, err
	}
	to, err := m.lookup(dst)
	if err != nil {
		return 0, err
	}
	return to.CopyEventsAndShift(start, end, from, newStart)
}

// CopyEvent copies one event of calendar src into calendar dst. See
// Calendar.CopyEvent.
func (m *Manager) CopyEvent(src, dst, subject string, date model.Date, clock model.Clock, newDate model.Date, newClock model.Clock) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, err := m.lookup(src)
	if err != nil {
		return model.Event{}, err
	}
	to, err := m.lookup(dst)
	if err != nil {
		return model.Event{}, err
	}
	return to.CopyEvent(from, subject, date, clock, newDate, newClock)
}
