package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medflowhq/hospital-booking/internal/directory"
)

// memRepo is an in-memory Repository. WithDoctorLock takes a per-doctor
// mutex for the duration of the callback and stages the insert until the
// callback succeeds, mirroring the advisory-lock transaction.
type memRepo struct {
	mu      sync.Mutex
	doctorL map[uuid.UUID]*sync.Mutex
	appts   map[uuid.UUID]*Appointment
	events  []Event
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctorL: make(map[uuid.UUID]*sync.Mutex),
		appts:   make(map[uuid.UUID]*Appointment),
	}
}

func (m *memRepo) doctorLock(id uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.doctorL[id]
	if !ok {
		l = &sync.Mutex{}
		m.doctorL[id] = l
	}
	return l
}

type memTx struct {
	repo   *memRepo
	staged []*Appointment
	events []Event
}

func (m *memRepo) WithDoctorLock(_ context.Context, doctorID uuid.UUID, fn func(q TxQueries) error) error {
	l := m.doctorLock(doctorID)
	l.Lock()
	defer l.Unlock()

	tx := &memTx{repo: m}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, a := range tx.staged {
		a.CreatedAt = now
		a.UpdatedAt = now
		m.appts[a.ID] = a
	}
	m.events = append(m.events, tx.events...)
	return nil
}

func (t *memTx) FindPatientOverlap(_ context.Context, patientID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	return t.repo.findOverlap(func(a *Appointment) bool { return a.PatientID == patientID }, start, end), nil
}

func (t *memTx) FindDoctorOverlap(_ context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	return t.repo.findOverlap(func(a *Appointment) bool { return a.DoctorID == doctorID }, start, end), nil
}

func (m *memRepo) findOverlap(match func(*Appointment) bool, start, end time.Time) []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if !match(a) || a.Status == StatusCancelled {
			continue
		}
		if !a.ScheduledAt.Before(start) && !a.ScheduledAt.After(end) {
			out = append(out, *a)
		}
	}
	return out
}

func (t *memTx) CountDoctorDay(_ context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) (int, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	count := 0
	for _, a := range t.repo.appts {
		if a.DoctorID != doctorID || a.Status == StatusCancelled {
			continue
		}
		if !a.ScheduledAt.Before(dayStart) && a.ScheduledAt.Before(dayEnd) {
			count++
		}
	}
	return count, nil
}

func (t *memTx) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	cp := *a
	t.staged = append(t.staged, &cp)
	return &cp, nil
}

func (t *memTx) InsertEvent(_ context.Context, ev Event) error {
	t.events = append(t.events, ev)
	return nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) ListAppointments(_ context.Context, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		out = append(out, *a)
	}
	return out, nil
}

func (m *memRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) SetStatus(_ context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) CancelIfActive(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.Status == StatusCancelled {
		return nil, ErrAppointmentNotFound
	}
	a.Status = StatusCancelled
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) FindDueReminders(_ context.Context, from, until time.Time, limit int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.ReminderSentAt != nil {
			continue
		}
		if a.Status != StatusScheduled && a.Status != StatusConfirmed {
			continue
		}
		if !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(until) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	sent := at
	a.ReminderSentAt = &sent
	return nil
}

func (m *memRepo) InsertEvent(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// memDirectory records lookups so tests can assert short-circuit order.
type memDirectory struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]*directory.Patient
	doctors      map[uuid.UUID]*directory.Doctor
	patientCalls int
	doctorCalls  int
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		patients: make(map[uuid.UUID]*directory.Patient),
		doctors:  make(map[uuid.UUID]*directory.Doctor),
	}
}

func (d *memDirectory) addPatient() uuid.UUID {
	id := uuid.New()
	d.patients[id] = &directory.Patient{ID: id, FirstName: "Test", LastName: "Patient"}
	return id
}

func (d *memDirectory) addDoctor() uuid.UUID {
	id := uuid.New()
	d.doctors[id] = &directory.Doctor{ID: id, FirstName: "Test", LastName: "Doctor"}
	return id
}

func (d *memDirectory) GetPatient(_ context.Context, id uuid.UUID) (*directory.Patient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patientCalls++
	p, ok := d.patients[id]
	if !ok {
		return nil, directory.ErrPatientNotFound
	}
	return p, nil
}

func (d *memDirectory) GetDoctor(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doctorCalls++
	doc, ok := d.doctors[id]
	if !ok {
		return nil, directory.ErrDoctorNotFound
	}
	return doc, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	booked    []uuid.UUID
	cancelled []uuid.UUID
	reminders []uuid.UUID
	changed   []uuid.UUID
}

func (n *recordingNotifier) AppointmentBooked(_ context.Context, a *Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked = append(n.booked, a.ID)
}

func (n *recordingNotifier) AppointmentCancelled(_ context.Context, a *Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, a.ID)
}

func (n *recordingNotifier) StatusChanged(_ context.Context, a *Appointment, _ Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, a.ID)
}

func (n *recordingNotifier) ReminderDue(_ context.Context, a *Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, a.ID)
}

var baseTime = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestService(maxDaily int) (*Service, *memRepo, *memDirectory, *recordingNotifier) {
	repo := newMemRepo()
	dir := newMemDirectory()
	notifier := &recordingNotifier{}
	svc := NewService(repo, dir, notifier, maxDaily, zerolog.Nop()).
		WithClock(func() time.Time { return baseTime })
	return svc, repo, dir, notifier
}

func TestBookSuccess(t *testing.T) {
	svc, repo, dir, notifier := newTestService(10)
	ctx := context.Background()
	patientID := dir.addPatient()
	doctorID := dir.addDoctor()

	at := baseTime.Add(2 * time.Hour)
	appt, err := svc.Book(ctx, patientID, doctorID, at, "Checkup", "")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if appt.Status != StatusScheduled {
		t.Errorf("Status = %s, want SCHEDULED", appt.Status)
	}
	if !appt.ScheduledAt.Equal(at) {
		t.Errorf("ScheduledAt = %s, want %s", appt.ScheduledAt, at)
	}
	if appt.PatientID != patientID || appt.DoctorID != doctorID {
		t.Error("party references not preserved")
	}

	stored, err := repo.GetAppointmentByID(ctx, appt.ID)
	if err != nil {
		t.Fatalf("stored appointment not found: %v", err)
	}
	if stored.Status != StatusScheduled {
		t.Errorf("stored Status = %s", stored.Status)
	}

	if len(repo.events) != 1 || repo.events[0].EventType != EventAppointmentBooked {
		t.Errorf("events = %+v, want one APPOINTMENT_BOOKED", repo.events)
	}
	if len(notifier.booked) != 1 {
		t.Errorf("booked notifications = %d, want 1", len(notifier.booked))
	}
}

func TestBookPatientNotFoundShortCircuits(t *testing.T) {
	svc, repo, dir, _ := newTestService(10)
	doctorID := dir.addDoctor()

	_, err := svc.Book(context.Background(), uuid.New(), doctorID, baseTime.Add(time.Hour), "", "")
	if !errors.Is(err, directory.ErrPatientNotFound) {
		t.Fatalf("err = %v, want ErrPatientNotFound", err)
	}

	// The doctor must not have been resolved and nothing may have been written.
	if dir.doctorCalls != 0 {
		t.Errorf("doctor lookups = %d, want 0", dir.doctorCalls)
	}
	if len(repo.appts) != 0 {
		t.Error("no appointment should exist")
	}
}

func TestBookDoctorNotFound(t *testing.T) {
	svc, _, dir, _ := newTestService(10)
	patientID := dir.addPatient()

	_, err := svc.Book(context.Background(), patientID, uuid.New(), baseTime.Add(time.Hour), "", "")
	if !errors.Is(err, directory.ErrDoctorNotFound) {
		t.Fatalf("err = %v, want ErrDoctorNotFound", err)
	}
}

func TestBookRejectsPastAndPresentTime(t *testing.T) {
	svc, _, dir, _ := newTestService(10)
	ctx := context.Background()
	patientID := dir.addPatient()
	doctorID := dir.addDoctor()

	for _, at := range []time.Time{baseTime.Add(-24 * time.Hour), baseTime.Add(-time.Second), baseTime} {
		if _, err := svc.Book(ctx, patientID, doctorID, at, "", ""); !errors.Is(err, ErrInvalidBookingTime) {
			t.Errorf("Book(%s) err = %v, want ErrInvalidBookingTime", at, err)
		}
	}

	// One second ahead of the clock is enough.
	if _, err := svc.Book(ctx, patientID, doctorID, baseTime.Add(time.Second), "", ""); err != nil {
		t.Errorf("Book(now+1s) err = %v, want nil", err)
	}
}

func TestBookPatientCheckPrecedesDoctorCheck(t *testing.T) {
	svc, _, dir, _ := newTestService(10)
	ctx := context.Background()
	patientID := dir.addPatient()
	doctorID := dir.addDoctor()

	first := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if _, err := svc.Book(ctx, patientID, doctorID, first, "", ""); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	// 10:20 is inside both the patient's 1h window and the doctor's 30m
	// window; the patient check runs first so its error wins.
	_, err := svc.Book(ctx, patientID, doctorID, first.Add(20*time.Minute), "", "")
	if !errors.Is(err, ErrPatientConflict) {
		t.Fatalf("err = %v, want ErrPatientConflict", err)
	}
}

func TestBookDoctorConflictWindow(t *testing.T) {
	svc, _, dir, _ := newTestService(10)
	ctx := context.Background()
	doctorID := dir.addDoctor()

	first := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if _, err := svc.Book(ctx, dir.addPatient(), doctorID, first, "", ""); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	// A different patient 29 minutes later hits the doctor's ±30m window.
	_, err := svc.Book(ctx, dir.addPatient(), doctorID, first.Add(29*time.Minute), "", "")
	if !errors.Is(err, ErrDoctorConflict) {
		t.Fatalf("err = %v, want ErrDoctorConflict", err)
	}

	// 31 minutes later is clear of it.
	if _, err := svc.Book(ctx, dir.addPatient(), doctorID, first.Add(31*time.Minute), "", ""); err != nil {
		t.Fatalf("Book outside window err = %v, want nil", err)
	}
}

func TestBookPatientConflictWindow(t *testing.T) {
	svc, _, dir, _ := newTestService(10)
	ctx := context.Background()
	patientID := dir.addPatient()

	first := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if _, err := svc.Book(ctx, patientID, dir.addDoctor(), first, "", ""); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	// Same patient, different doctor, 59 minutes later: inside the ±1h
	// patient window even though the doctors do not clash.
	_, err := svc.Book(ctx, patientID, dir.addDoctor(), first.Add(59*time.Minute), "", "")
	if !errors.Is(err, ErrPatientConflict) {
		t.Fatalf("err = %v, want ErrPatientConflict", err)
	}

	if _, err := svc.Book(ctx, patientID, dir.addDoctor(), first.Add(61*time.Minute), "", ""); err != nil {
		t.Fatalf("Book outside window err = %v, want nil", err)
	}
}

func TestCancelledAppointmentsDoNotConflict(t *testing.T) {
	svc, _, dir, _ := newTestService(10)
	ctx := context.Background()
	doctorID := dir.addDoctor()

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	first, err := svc.Book(ctx, dir.addPatient(), doctorID, at, "", "")
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	if _, err := svc.Cancel(ctx, first.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// The cancelled slot no longer blocks the doctor.
	if _, err := svc.Book(ctx, dir.addPatient(), doctorID, at, "", ""); err != nil {
		t.Fatalf("rebook after cancel err = %v, want nil", err)
	}
}

func TestCapacityBoundary(t *testing.T) {
	const maxDaily = 10
	svc, _, dir, _ := newTestService(maxDaily)
	ctx := context.Background()
	doctorID := dir.addDoctor()

	// Hourly slots keep each booking clear of the doctor's 30m window.
	day := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	var tenth *Appointment
	for i := 0; i < maxDaily; i++ {
		appt, err := svc.Book(ctx, dir.addPatient(), doctorID, day.Add(time.Duration(i)*time.Hour), "", "")
		if err != nil {
			t.Fatalf("booking %d: %v", i+1, err)
		}
		tenth = appt
	}

	// The 11th booking of the day must be rejected.
	eleventhAt := day.Add(time.Duration(maxDaily) * time.Hour)
	_, err := svc.Book(ctx, dir.addPatient(), doctorID, eleventhAt, "", "")
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("11th booking err = %v, want ErrCapacityExceeded", err)
	}

	// Cancelling one of the ten frees capacity for a retry.
	if _, err := svc.Cancel(ctx, tenth.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := svc.Book(ctx, dir.addPatient(), doctorID, eleventhAt, "", ""); err != nil {
		t.Fatalf("retry after cancel err = %v, want nil", err)
	}
}

func TestConcurrentBookingsSameDoctorOnlyOneWins(t *testing.T) {
	svc, repo, dir, _ := newTestService(10)
	doctorID := dir.addDoctor()
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	const attempts = 16
	patientIDs := make([]uuid.UUID, attempts)
	for i := range patientIDs {
		patientIDs[i] = dir.addPatient()
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// All attempts target the same doctor within the 30m window.
			_, errs[i] = svc.Book(context.Background(), patientIDs[i], doctorID, at.Add(time.Duration(i)*time.Minute), "", "")
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrDoctorConflict):
		default:
			t.Errorf("attempt %d: unexpected error %v", i, err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if got := len(repo.appts); got != 1 {
		t.Fatalf("stored appointments = %d, want 1", got)
	}
}

func TestCancelIdempotentGuard(t *testing.T) {
	svc, _, dir, notifier := newTestService(10)
	ctx := context.Background()

	appt, err := svc.Book(ctx, dir.addPatient(), dir.addDoctor(), baseTime.Add(time.Hour), "", "")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, appt.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("Status = %s, want CANCELLED", cancelled.Status)
	}
	if len(notifier.cancelled) != 1 {
		t.Errorf("cancel notifications = %d, want 1", len(notifier.cancelled))
	}

	if _, err := svc.Cancel(ctx, appt.ID); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("second cancel err = %v, want ErrAlreadyCancelled", err)
	}

	if _, err := svc.Cancel(ctx, uuid.New()); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("cancel unknown err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestUpdateStatusPermissive(t *testing.T) {
	svc, _, dir, _ := newTestService(10)
	ctx := context.Background()

	appt, err := svc.Book(ctx, dir.addPatient(), dir.addDoctor(), baseTime.Add(time.Hour), "", "")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	// Any recognized label is accepted, in any order, case-insensitively.
	for _, label := range []string{"CONFIRMED", "completed", "in_progress", "No_Show", "scheduled"} {
		updated, err := svc.UpdateStatus(ctx, appt.ID, label)
		if err != nil {
			t.Fatalf("UpdateStatus(%q): %v", label, err)
		}
		want, _ := ParseStatus(label)
		if updated.Status != want {
			t.Errorf("UpdateStatus(%q) = %s, want %s", label, updated.Status, want)
		}
	}

	if _, err := svc.UpdateStatus(ctx, appt.ID, "ARCHIVED"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}

	if _, err := svc.UpdateStatus(ctx, uuid.New(), "CONFIRMED"); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("unknown id err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestSendDueReminders(t *testing.T) {
	svc, _, dir, notifier := newTestService(10)
	ctx := context.Background()

	// One appointment inside the 24h window, one far outside it.
	near, err := svc.Book(ctx, dir.addPatient(), dir.addDoctor(), baseTime.Add(3*time.Hour), "", "")
	if err != nil {
		t.Fatalf("Book near: %v", err)
	}
	if _, err := svc.Book(ctx, dir.addPatient(), dir.addDoctor(), baseTime.Add(72*time.Hour), "", ""); err != nil {
		t.Fatalf("Book far: %v", err)
	}

	sent, err := svc.SendDueReminders(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("SendDueReminders: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if len(notifier.reminders) != 1 || notifier.reminders[0] != near.ID {
		t.Errorf("reminders = %v, want [%s]", notifier.reminders, near.ID)
	}

	// Second run finds nothing new.
	sent, err = svc.SendDueReminders(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("second SendDueReminders: %v", err)
	}
	if sent != 0 {
		t.Errorf("second run sent = %d, want 0", sent)
	}
}
