package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/appointment"
	"github.com/Originnnn/appointment/internal/chat"
	"github.com/Originnnn/appointment/internal/directory"
	"github.com/Originnnn/appointment/internal/identity"
	"github.com/Originnnn/appointment/internal/schedule"
)

// mockDirectory resolves actors from a fixed set.
type mockDirectory struct {
	actors     map[identity.Role]map[uuid.UUID]string
	doctors    []directory.Doctor
	resolveErr error
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{actors: map[identity.Role]map[uuid.UUID]string{
		identity.RolePatient: {},
		identity.RoleDoctor:  {},
	}}
}

func (m *mockDirectory) add(role identity.Role, name string) identity.Principal {
	id := uuid.New()
	m.actors[role][id] = name
	if role == identity.RoleDoctor {
		m.doctors = append(m.doctors, directory.Doctor{ID: id, FullName: name})
	}
	return identity.Principal{Role: role, ID: id, Name: name}
}

func (m *mockDirectory) ListDoctors(context.Context) []directory.Doctor {
	if m.doctors == nil {
		return []directory.Doctor{}
	}
	return m.doctors
}

func (m *mockDirectory) GetDoctor(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	for _, d := range m.doctors {
		if d.ID == id {
			d := d
			return &d, nil
		}
	}
	return nil, directory.ErrDoctorNotFound
}

func (m *mockDirectory) Resolve(_ context.Context, role identity.Role, id uuid.UUID) (identity.Principal, error) {
	if m.resolveErr != nil {
		return identity.Principal{}, m.resolveErr
	}
	name, ok := m.actors[role][id]
	if !ok {
		return identity.Principal{}, directory.ErrUnknownActor
	}
	return identity.Principal{Role: role, ID: id, Name: name}, nil
}

type mockSchedules struct {
	createFunc func(ctx context.Context, actor identity.Principal, in schedule.BlockInput) (*schedule.Block, error)
	updateFunc func(ctx context.Context, actor identity.Principal, id uuid.UUID, in schedule.BlockInput) (*schedule.Block, error)
	deleteFunc func(ctx context.Context, actor identity.Principal, id uuid.UUID) error
	listFunc   func(ctx context.Context, doctorID uuid.UUID) ([]schedule.Block, error)
}

func (m *mockSchedules) CreateBlock(ctx context.Context, actor identity.Principal, in schedule.BlockInput) (*schedule.Block, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, actor, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSchedules) UpdateBlock(ctx context.Context, actor identity.Principal, id uuid.UUID, in schedule.BlockInput) (*schedule.Block, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, actor, id, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSchedules) DeleteBlock(ctx context.Context, actor identity.Principal, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, actor, id)
	}
	return errors.New("not implemented")
}

func (m *mockSchedules) ListBlocks(ctx context.Context, doctorID uuid.UUID) ([]schedule.Block, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, doctorID)
	}
	return nil, errors.New("not implemented")
}

type mockAppointments struct {
	bookFunc     func(ctx context.Context, actor identity.Principal, req appointment.BookingRequest) (*appointment.Appointment, error)
	statusFunc   func(ctx context.Context, actor identity.Principal, id uuid.UUID, to appointment.Status) (*appointment.Appointment, error)
	completeFunc func(ctx context.Context, actor identity.Principal, id uuid.UUID, diagnosis, treatment string) (*appointment.Appointment, *appointment.MedicalRecord, error)
	getFunc      func(ctx context.Context, actor identity.Principal, id uuid.UUID) (*appointment.Appointment, error)
	listFunc     func(ctx context.Context, actor identity.Principal) ([]appointment.AppointmentDetail, error)
	recordsFunc  func(ctx context.Context, actor identity.Principal) ([]appointment.PatientRecord, error)
}

func (m *mockAppointments) BookAppointment(ctx context.Context, actor identity.Principal, req appointment.BookingRequest) (*appointment.Appointment, error) {
	if m.bookFunc != nil {
		return m.bookFunc(ctx, actor, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppointments) SetAppointmentStatus(ctx context.Context, actor identity.Principal, id uuid.UUID, to appointment.Status) (*appointment.Appointment, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, actor, id, to)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppointments) CompleteAppointment(ctx context.Context, actor identity.Principal, id uuid.UUID, diagnosis, treatment string) (*appointment.Appointment, *appointment.MedicalRecord, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, actor, id, diagnosis, treatment)
	}
	return nil, nil, errors.New("not implemented")
}

func (m *mockAppointments) GetAppointment(ctx context.Context, actor identity.Principal, id uuid.UUID) (*appointment.Appointment, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, actor, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppointments) ListAppointments(ctx context.Context, actor identity.Principal) ([]appointment.AppointmentDetail, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, actor)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppointments) MedicalRecords(ctx context.Context, actor identity.Principal) ([]appointment.PatientRecord, error) {
	if m.recordsFunc != nil {
		return m.recordsFunc(ctx, actor)
	}
	return nil, errors.New("not implemented")
}

// memMessages is an in-memory chat.Repository.
type memMessages struct {
	mu        sync.Mutex
	msgs      []chat.Message
	insertErr error
}

func (r *memMessages) Insert(_ context.Context, m *chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	m.ID = int64(len(r.msgs) + 1)
	m.CreatedAt = time.Date(2025, 6, 10, 9, 0, len(r.msgs), 0, time.UTC)
	r.msgs = append(r.msgs, *m)
	return nil
}

func (r *memMessages) ListByConversation(_ context.Context, conversationID string) ([]chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.Message
	for _, m := range r.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

// memBroker fans out in-process.
type memBroker struct {
	mu   sync.Mutex
	subs map[*memSub]struct{}
}

type memSub struct {
	b    *memBroker
	conv string
	ch   chan chat.Message
	once sync.Once
}

func (b *memBroker) Publish(_ context.Context, m chat.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if s.conv == m.ConversationID {
			select {
			case s.ch <- m:
			default:
			}
		}
	}
	return nil
}

func (b *memBroker) Subscribe(_ context.Context, conversationID string) (chat.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[*memSub]struct{})
	}
	s := &memSub{b: b, conv: conversationID, ch: make(chan chat.Message, 16)}
	b.subs[s] = struct{}{}
	return s, nil
}

func (b *memBroker) active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (s *memSub) Messages() <-chan chat.Message { return s.ch }

func (s *memSub) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s)
		close(s.ch)
		s.b.mu.Unlock()
	})
	return nil
}

type testEnv struct {
	dir      *mockDirectory
	sched    *mockSchedules
	appts    *mockAppointments
	messages *memMessages
	broker   *memBroker
	channel  *chat.Channel
	patient  identity.Principal
	doctor   identity.Principal
}

func newTestEnv() *testEnv {
	env := &testEnv{
		dir:      newMockDirectory(),
		sched:    &mockSchedules{},
		appts:    &mockAppointments{},
		messages: &memMessages{},
		broker:   &memBroker{},
	}
	env.channel = chat.NewChannel(env.messages, env.broker, zap.NewNop())
	env.patient = env.dir.add(identity.RolePatient, "Lan")
	env.doctor = env.dir.add(identity.RoleDoctor, "Dr. Minh")
	return env
}

func (e *testEnv) router(health *HealthHandler) *routerUnderTest {
	return &routerUnderTest{NewRouter(RouterConfig{
		Directory:    e.dir,
		Schedules:    e.sched,
		Appointments: e.appts,
		Chat:         e.channel,
		Health:       health,
		Logger:       zap.NewNop(),
	})}
}
