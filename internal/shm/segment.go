package shm

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
)

// Role identifies how a process holds the segment.
type Role int

const (
	// RoleOwner creates, initializes and destroys the segment and writes the
	// temperature field group.
	RoleOwner Role = iota
	// RoleReader attaches read-only.
	RoleReader
	// RoleWriter attaches read-write and writes the compensation field group.
	RoleWriter
)

// String returns the string representation of the role
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleReader:
		return "reader"
	case RoleWriter:
		return "writer"
	default:
		return "unknown"
	}
}

var errFieldGroup = errors.New("field group is written by another role")

// Option configures a segment handle.
type Option func(*Segment)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Segment) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Segment is an explicitly owned handle on a mapped segment. All accessors
// fail with ErrNotAttached once the handle has been detached.
type Segment struct {
	name   string
	path   string
	size   int
	role   Role
	logger *zap.Logger

	// mu guards the mapping itself: accessors hold it shared, detach holds
	// it exclusively so no access can outlive munmap.
	mu       sync.RWMutex
	fd       int
	mem      []byte
	state    *State
	unlinked bool

	// compMu serializes compensation writes from concurrent RPC handlers.
	compMu     sync.Mutex
	compWrites uint64
}

func newSegment(name string, size int, role Role, opts []Option) *Segment {
	s := &Segment{
		name:   name,
		path:   Path(name),
		size:   size,
		role:   role,
		logger: zap.NewNop(),
		fd:     -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("segment", name), zap.Stringer("role", role))
	return s
}

// Path maps a segment name onto its backing object, the way shm_open does on
// Linux: /dev/shm/<name>, or the temp dir when /dev/shm is unavailable.
func Path(name string) string {
	base := strings.TrimPrefix(name, "/")
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", base)
	}
	return filepath.Join(os.TempDir(), base)
}

func validateName(name string, size int) error {
	base := strings.TrimPrefix(name, "/")
	if base == "" || strings.Contains(base, "/") {
		return fmt.Errorf("invalid segment name %q", name)
	}
	if size < int(unsafe.Sizeof(State{})) {
		return fmt.Errorf("size %d is smaller than the %d byte layout", size, unsafe.Sizeof(State{}))
	}
	return nil
}

// Pending is a created and mapped segment that has not been initialized yet.
// It exposes no accessors; Initialize is the only way to obtain a writable
// owner handle.
type Pending struct {
	seg *Segment
}

// CreateOrRecover exclusively creates the named segment, sizes it to size
// bytes and maps it read-write. A stale segment left by a crashed owner is
// unlinked and creation is retried exactly once. Every partially acquired
// resource is released before an error is returned.
func CreateOrRecover(name string, size int, opts ...Option) (*Pending, error) {
	if err := validateName(name, size); err != nil {
		return nil, newError("create", name, ErrSegmentCreate, err)
	}
	s := newSegment(name, size, RoleOwner, opts)

	fd, err := openExclusive(s.path)
	if isExist(err) {
		s.logger.Warn("Stale segment found, removing and retrying", zap.String("path", s.path))
		if uerr := unlink(s.path); uerr != nil && !isNotExist(uerr) {
			return nil, newError("create", name, ErrSegmentCreate, uerr)
		}
		fd, err = openExclusive(s.path)
	}
	if err != nil {
		return nil, newError("create", name, ErrSegmentCreate, err)
	}

	if err := truncate(fd, size); err != nil {
		_ = closeFD(fd)
		_ = unlink(s.path)
		return nil, newError("size", name, ErrSegmentSize, err)
	}

	mem, err := mapRegion(fd, size, true)
	if err != nil {
		_ = closeFD(fd)
		_ = unlink(s.path)
		return nil, newError("map", name, ErrSegmentMap, err)
	}

	s.fd = fd
	s.mem = mem
	s.logger.Info("Segment created", zap.String("path", s.path), zap.Int("size", size))
	return &Pending{seg: s}, nil
}

// Initialize zeroes the mapped bytes, stamps the magic value and validates
// it. On mismatch the mapping and the creation are unwound. A Pending can be
// initialized once.
func (p *Pending) Initialize() (*Segment, error) {
	if p == nil || p.seg == nil {
		return nil, newError("validate", "", ErrNotAttached, nil)
	}
	s := p.seg
	p.seg = nil

	clear(s.mem)
	state := (*State)(unsafe.Pointer(&s.mem[0]))
	atomic.StoreUint32(&state.magic, Magic)

	if got := atomic.LoadUint32(&state.magic); got != Magic {
		s.Destroy()
		return nil, newError("validate", s.name, ErrInvalidMagic, fmt.Errorf("got %#08x, want %#08x", got, Magic))
	}

	s.state = state
	s.logger.Info("Segment initialized", zap.String("magic", fmt.Sprintf("%#08x", Magic)))
	return s, nil
}

// Abort releases a pending creation without initializing it.
func (p *Pending) Abort() {
	if p == nil || p.seg == nil {
		return
	}
	p.seg.Destroy()
	p.seg = nil
}

// AttachReadOnly maps an existing segment read-only and validates its magic.
func AttachReadOnly(name string, size int, opts ...Option) (*Segment, error) {
	return attach(name, size, RoleReader, opts)
}

// AttachReadWrite maps an existing segment read-write and validates its magic.
// The handle may write only the compensation field group.
func AttachReadWrite(name string, size int, opts ...Option) (*Segment, error) {
	return attach(name, size, RoleWriter, opts)
}

func attach(name string, size int, role Role, opts []Option) (*Segment, error) {
	if err := validateName(name, size); err != nil {
		return nil, newError("attach", name, ErrAttach, err)
	}
	s := newSegment(name, size, role, opts)
	writable := role == RoleWriter

	fd, err := openExisting(s.path, writable)
	if err != nil {
		if isNotExist(err) {
			return nil, newError("attach", name, ErrSegmentNotFound, err)
		}
		return nil, newError("attach", name, ErrAttach, err)
	}

	objSize, err := objectSize(fd)
	if err != nil {
		_ = closeFD(fd)
		return nil, newError("attach", name, ErrAttach, err)
	}
	if objSize < int64(size) {
		_ = closeFD(fd)
		return nil, newError("attach", name, ErrAttach, fmt.Errorf("object is %d bytes, want %d", objSize, size))
	}

	mem, err := mapRegion(fd, size, writable)
	if err != nil {
		_ = closeFD(fd)
		return nil, newError("attach", name, ErrSegmentMap, err)
	}

	state := (*State)(unsafe.Pointer(&mem[0]))
	if got := atomic.LoadUint32(&state.magic); got != Magic {
		_ = unmapRegion(mem)
		_ = closeFD(fd)
		return nil, newError("attach", name, ErrInvalidMagic, fmt.Errorf("got %#08x, want %#08x", got, Magic))
	}

	s.fd = fd
	s.mem = mem
	s.state = state
	s.logger.Info("Attached to segment", zap.Bool("writable", writable))
	return s, nil
}

// Name returns the segment name.
func (s *Segment) Name() string { return s.name }

// Role returns how this handle holds the segment.
func (s *Segment) Role() Role { return s.role }

// Size returns the mapped size in bytes.
func (s *Segment) Size() int { return s.size }

// Attached reports whether the mapping is still held.
func (s *Segment) Attached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state != nil
}

// Detach unmaps the region and closes the handle. It never removes the name
// and is a no-op on an already detached handle. Cleanup errors are logged and
// swallowed.
func (s *Segment) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

func (s *Segment) detachLocked() {
	if s.mem == nil {
		return
	}
	s.state = nil
	if err := unmapRegion(s.mem); err != nil {
		s.logger.Warn("Failed to unmap segment", zap.Error(err))
	}
	s.mem = nil
	if err := closeFD(s.fd); err != nil {
		s.logger.Warn("Failed to close segment handle", zap.Error(err))
	}
	s.fd = -1
	s.logger.Info("Detached from segment")
}

// Destroy detaches and removes the name from the system namespace. Only the
// owner unlinks; on any other handle Destroy behaves like Detach. A name that
// is already gone counts as destroyed.
func (s *Segment) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detachLocked()
	if s.role != RoleOwner {
		s.logger.Warn("Destroy called by non-owner, segment name left in place")
		return
	}
	if s.unlinked {
		return
	}
	if err := unlink(s.path); err != nil && !isNotExist(err) {
		s.logger.Warn("Failed to unlink segment", zap.Error(err))
	}
	s.unlinked = true
	s.logger.Info("Segment destroyed")
}

// view runs fn with the mapped state while holding the mapping shared.
func (s *Segment) view(op string, fn func(*State) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return newError(op, s.name, ErrNotAttached, nil)
	}
	return fn(s.state)
}

// Valid reports whether the magic value is intact.
func (s *Segment) Valid() bool {
	var ok bool
	_ = s.view("read", func(st *State) error {
		ok = atomic.LoadUint32(&st.magic) == Magic
		return nil
	})
	return ok
}

// ReadTemperature loads the temperature field group.
func (s *Segment) ReadTemperature() (TemperatureReading, error) {
	var r TemperatureReading
	err := s.view("read", func(st *State) error {
		r = TemperatureReading{
			Celsius:     loadFloat(&st.temperature),
			Timestamp:   loadFloat(&st.temperatureTimestamp),
			SampleCount: atomic.LoadUint32(&st.sampleCount),
		}
		return nil
	})
	return r, err
}

// WriteTemperature stores a sample and increments the sample counter,
// returning the new count. Only the owner may write this group.
func (s *Segment) WriteTemperature(celsius, timestamp float64) (uint32, error) {
	var n uint32
	err := s.view("write", func(st *State) error {
		if s.role != RoleOwner {
			return newError("write", s.name, errFieldGroup, fmt.Errorf("temperature group, role %s", s.role))
		}
		storeFloat(&st.temperature, celsius)
		storeFloat(&st.temperatureTimestamp, timestamp)
		n = atomic.AddUint32(&st.sampleCount, 1)
		return nil
	})
	return n, err
}

// ReadCompensation loads the compensation field group.
func (s *Segment) ReadCompensation() (Compensation, error) {
	var c Compensation
	err := s.view("read", func(st *State) error {
		c = Compensation{
			X:         loadFloat(&st.compensationX),
			Y:         loadFloat(&st.compensationY),
			Timestamp: loadFloat(&st.compensationTimestamp),
		}
		return nil
	})
	return c, err
}

// WriteCompensation stores a compensation pair. Concurrent callers are
// serialized so the pair is never interleaved between writers.
func (s *Segment) WriteCompensation(x, y, timestamp float64) error {
	return s.view("write", func(st *State) error {
		switch s.role {
		case RoleWriter:
		case RoleReader:
			return newError("write", s.name, ErrReadOnly, nil)
		default:
			return newError("write", s.name, errFieldGroup, fmt.Errorf("compensation group, role %s", s.role))
		}

		s.compMu.Lock()
		defer s.compMu.Unlock()
		storeFloat(&st.compensationX, x)
		storeFloat(&st.compensationY, y)
		storeFloat(&st.compensationTimestamp, timestamp)
		s.compWrites++
		return nil
	})
}

// CompensationWrites returns how many compensation writes this handle made.
func (s *Segment) CompensationWrites() uint64 {
	s.compMu.Lock()
	defer s.compMu.Unlock()
	return s.compWrites
}

// Snapshot copies every field of the segment.
func (s *Segment) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.view("read", func(st *State) error {
		snap.Magic = atomic.LoadUint32(&st.magic)
		snap.Valid = snap.Magic == Magic
		snap.Temperature = TemperatureReading{
			Celsius:     loadFloat(&st.temperature),
			Timestamp:   loadFloat(&st.temperatureTimestamp),
			SampleCount: atomic.LoadUint32(&st.sampleCount),
		}
		snap.Compensation = Compensation{
			X:         loadFloat(&st.compensationX),
			Y:         loadFloat(&st.compensationY),
			Timestamp: loadFloat(&st.compensationTimestamp),
		}
		return nil
	})
	return snap, err
}

// Reset zeroes both field groups and keeps the magic value. Owner only.
func (s *Segment) Reset() error {
	return s.view("write", func(st *State) error {
		if s.role != RoleOwner {
			return newError("write", s.name, errFieldGroup, fmt.Errorf("reset, role %s", s.role))
		}
		storeFloat(&st.temperature, 0)
		storeFloat(&st.temperatureTimestamp, 0)
		atomic.StoreUint32(&st.sampleCount, 0)
		storeFloat(&st.compensationX, 0)
		storeFloat(&st.compensationY, 0)
		storeFloat(&st.compensationTimestamp, 0)
		return nil
	})
}

func loadFloat(addr *uint64) float64 {
	return math.Float64frombits(atomic.LoadUint64(addr))
}

func storeFloat(addr *uint64, v float64) {
	atomic.StoreUint64(addr, math.Float64bits(v))
}
