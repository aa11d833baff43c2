package voxroom

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voxroom/events"
	"github.com/opd-ai/voxroom/layout"
	"github.com/opd-ai/voxroom/license"
	"github.com/opd-ai/voxroom/logging"
	"github.com/opd-ai/voxroom/spatial"
)

// Version is the engine version licenses are checked against.
const Version = "1.0.0"

// Library is one engine instance: an output format, a layout catalog and the
// rooms mixed in that format.
//
// Initialize and Destroy exclude every other call. Room creation and
// destruction are serialized by the library; every other call locks only
// the room it touches.
type Library struct {
	mu    sync.RWMutex
	cfg   Config
	rooms map[int]*Room

	catalog *layout.Catalog
	mixer   *spatial.Mixer

	logs *logControl
	log  *logrus.Entry

	listenersMu sync.RWMutex
	listeners   []events.Listener

	licensed      bool
	licenseStatus license.Status

	clock TimeProvider
	stats *statsCollector
}

// Initialize validates cfg and creates a library.
func Initialize(cfg Config, opts ...Option) (*Library, error) {
	o := options{level: LogWarning, clock: DefaultTimeProvider{}}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, fmt.Errorf("initialize: %w", err)
		}
	}
	if o.logger == nil {
		o.logger = logrus.New()
	}
	logs := newLogControl(o.logger, o.sink, o.level)
	log := logrus.NewEntry(o.logger).WithField("component", "library")

	h := logging.For(log, "Initialize").WithFields(logrus.Fields{
		"output_sample_rate": cfg.OutputSampleRate,
		"output_frames":      cfg.OutputFrames,
		"output_channels":    cfg.OutputChannels,
		"interleaved":        cfg.Interleaved,
		"spatial_quality":    cfg.SpatialQuality,
	})
	if err := cfg.Validate(); err != nil {
		h.WithCaller().WithError(err, "validate_config").Error("Configuration rejected")
		return nil, err
	}

	mixer, err := spatial.NewMixer(spatial.MixerConfig{
		SampleRate: cfg.OutputSampleRate,
		Frames:     cfg.OutputFrames,
		Channels:   cfg.OutputChannels,
		Quality:    cfg.SpatialQuality,
	}, log)
	if err != nil {
		h.WithCaller().WithError(err, "create_mixer").Error("Mixer creation failed")
		return nil, err
	}

	catalog := o.catalog
	if catalog == nil {
		catalog = layout.Default()
	}

	l := &Library{
		cfg:     cfg,
		rooms:   make(map[int]*Room),
		catalog: catalog,
		mixer:   mixer,
		logs:    logs,
		log:     log,
		clock:   o.clock,
		stats:   newStatsCollector(o.clock),
	}
	if o.listener != nil {
		l.listeners = append(l.listeners, o.listener)
	}
	l.checkLicense(o)

	h.WithFields(logrus.Fields{
		"layouts":  catalog.Len(),
		"licensed": l.licensed,
	}).Info("Library initialized")
	return l, nil
}

// checkLicense decides whether licensed features are available.
func (l *Library) checkLicense(o options) {
	if !o.licensed {
		l.licensed = true
		l.licenseStatus = license.Status{Valid: true, Product: "voxroom"}
		return
	}

	var info license.Info
	var err error
	if o.licensePath != "" {
		info, err = license.LoadFile(o.licensePath, o.licenseKey, Version, o.clock.Now())
	} else {
		info, err = license.Verify(o.licenseData, o.licenseKey, Version, o.clock.Now())
	}
	l.licensed = err == nil
	l.licenseStatus = license.NewStatus(info, err)

	h := logging.For(l.log, "checkLicense").WithField("licensee", info.Licensee)
	if err != nil {
		h.WithError(err, "verify_license").Warn("License invalid, enhancement and 3D mixing disabled")
		return
	}
	h.Info("License verified")
}

// Destroy removes every room. Later calls on the library return
// ErrNotInitialized.
func (l *Library) Destroy() error {
	if l == nil {
		return ErrNotInitialized
	}
	l.mu.Lock()
	if l.rooms == nil {
		l.mu.Unlock()
		return ErrNotInitialized
	}
	ids := sortedKeys(l.rooms)
	for _, id := range ids {
		l.rooms[id].close()
	}
	l.rooms = nil
	l.mu.Unlock()

	for _, id := range ids {
		l.notify(events.Event{Kind: events.DestroyRoom, RoomID: id})
	}
	logging.For(l.log, "Destroy").WithField("rooms", len(ids)).Info("Library destroyed")
	return nil
}

// Configuration returns the active output format, or InvalidConfig when the
// library is nil or destroyed.
func (l *Library) Configuration() Config {
	if l == nil {
		return InvalidConfig()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.rooms == nil {
		return InvalidConfig()
	}
	return l.cfg
}

// alive reports whether l is initialized and not yet destroyed.
func (l *Library) alive() bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rooms != nil
}

// AddEventListener registers another receiver of engine events.
func (l *Library) AddEventListener(listener events.Listener) error {
	if !l.alive() {
		return ErrNotInitialized
	}
	if listener == nil {
		return fmt.Errorf("nil event listener: %w", ErrDataNull)
	}
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	l.listeners = append(l.listeners, listener)
	return nil
}

// notify delivers e to every listener. It must be called without holding the
// library or any room lock.
func (l *Library) notify(e events.Event) {
	l.listenersMu.RLock()
	listeners := l.listeners
	l.listenersMu.RUnlock()
	events.Multi(listeners).HandleEvent(e)
}

// CreateRoom adds an empty room using layout 1 of the catalog.
func (l *Library) CreateRoom(roomID int) error {
	if l == nil {
		return ErrNotInitialized
	}
	l.mu.Lock()
	if l.rooms == nil {
		l.mu.Unlock()
		return ErrNotInitialized
	}
	if _, ok := l.rooms[roomID]; ok {
		l.mu.Unlock()
		return fmt.Errorf("room %d: %w", roomID, ErrDuplicateRoomID)
	}
	first, err := l.catalog.Get(1)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.rooms[roomID] = newRoom(roomID, 1, first)
	l.mu.Unlock()

	logging.For(l.log, "CreateRoom").WithField("room_id", roomID).Info("Room created")
	l.notify(events.Event{Kind: events.CreateRoom, RoomID: roomID, LayoutID: 1})
	return nil
}

// DestroyRoom removes a room and every participant in it. The id can be
// reused afterwards.
func (l *Library) DestroyRoom(roomID int) error {
	if l == nil {
		return ErrNotInitialized
	}
	l.mu.Lock()
	if l.rooms == nil {
		l.mu.Unlock()
		return ErrNotInitialized
	}
	r, ok := l.rooms[roomID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("room %d: %w", roomID, ErrInvalidRoomID)
	}
	r.close()
	delete(l.rooms, roomID)
	l.mu.Unlock()

	logging.For(l.log, "DestroyRoom").WithField("room_id", roomID).Info("Room destroyed")
	l.notify(events.Event{Kind: events.DestroyRoom, RoomID: roomID})
	return nil
}

// RoomCount returns the number of rooms.
func (l *Library) RoomCount() (int, error) {
	if l == nil {
		return 0, ErrNotInitialized
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.rooms == nil {
		return 0, ErrNotInitialized
	}
	return len(l.rooms), nil
}

// RoomIDs returns the ids of every room in ascending order.
func (l *Library) RoomIDs() ([]int, error) {
	if l == nil {
		return nil, ErrNotInitialized
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.rooms == nil {
		return nil, ErrNotInitialized
	}
	return sortedKeys(l.rooms), nil
}

// withRoom runs fn on the room while holding the library read lock, so
// Destroy waits for fn to finish.
func (l *Library) withRoom(roomID int, fn func(r *Room) error) error {
	if l == nil {
		return ErrNotInitialized
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.rooms == nil {
		return ErrNotInitialized
	}
	r, ok := l.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %d: %w", roomID, ErrInvalidRoomID)
	}
	return fn(r)
}

// ParticipantCount returns the number of participants in a room.
func (l *Library) ParticipantCount(roomID int) (int, error) {
	var n int
	err := l.withRoom(roomID, func(r *Room) error {
		r.mu.RLock()
		defer r.mu.RUnlock()
		n = len(r.participants)
		return nil
	})
	return n, err
}

// ParticipantIDs returns the ids of every participant in a room in
// ascending order.
func (l *Library) ParticipantIDs(roomID int) ([]int, error) {
	var ids []int
	err := l.withRoom(roomID, func(r *Room) error {
		r.mu.RLock()
		defer r.mu.RUnlock()
		ids = sortedKeys(r.participants)
		return nil
	})
	return ids, err
}

// SetRoomLayout switches a room to another catalog layout and re-seats every
// participant.
func (l *Library) SetRoomLayout(roomID, layoutID int) error {
	err := l.withRoom(roomID, func(r *Room) error {
		next, err := l.catalog.Get(layoutID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.setLayout(layoutID, next)
		return nil
	})
	if err != nil {
		logging.For(l.log, "SetRoomLayout").WithFields(logrus.Fields{
			"room_id":   roomID,
			"layout_id": layoutID,
		}).WithCaller().WithError(err, "set_layout").Error("Layout change rejected")
		return err
	}
	logging.For(l.log, "SetRoomLayout").WithFields(logrus.Fields{
		"room_id":   roomID,
		"layout_id": layoutID,
	}).Info("Room layout changed")
	l.notify(events.Event{Kind: events.SetRoomLayout, RoomID: roomID, LayoutID: layoutID})
	return nil
}

// RoomLayout returns the active layout id of a room.
func (l *Library) RoomLayout(roomID int) (int, error) {
	var id int
	err := l.withRoom(roomID, func(r *Room) error {
		r.mu.RLock()
		defer r.mu.RUnlock()
		id = r.layoutID
		return nil
	})
	return id, err
}

// Layouts returns the layout catalog.
func (l *Library) Layouts() (*layout.Catalog, error) {
	if !l.alive() {
		return nil, ErrNotInitialized
	}
	return l.catalog, nil
}

// LayoutsJSON returns the catalog as JSON.
func (l *Library) LayoutsJSON() (string, error) {
	if !l.alive() {
		return "", ErrNotInitialized
	}
	data, err := json.Marshal(l.catalog)
	if err != nil {
		return "", fmt.Errorf("encode layouts: %w", err)
	}
	return string(data), nil
}

// LicenseInfo returns the license status as JSON.
func (l *Library) LicenseInfo() (string, error) {
	if !l.alive() {
		return "", ErrNotInitialized
	}
	return l.licenseStatus.JSON(), nil
}

// Licensed reports whether licensed features are active. A destroyed
// library reports false.
func (l *Library) Licensed() bool {
	return l.alive() && l.licensed
}

// Stats returns the processing counters.
func (l *Library) Stats() (Stats, error) {
	if l == nil {
		return Stats{}, ErrNotInitialized
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.rooms == nil {
		return Stats{}, ErrNotInitialized
	}
	s := l.stats.snapshot()
	s.Rooms = len(l.rooms)
	for _, r := range l.rooms {
		r.mu.RLock()
		s.Participants += len(r.participants)
		r.mu.RUnlock()
	}
	return s, nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
