package schedule

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/calendar"
	"github.com/Originnnn/appointment/internal/identity"
	"github.com/Originnnn/appointment/internal/store"
)

// -- Mock Repository --

type mockBlockRepo struct {
	blocks   map[uuid.UUID]*Block
	writeErr error
	calls    int
}

func newMockBlockRepo() *mockBlockRepo {
	return &mockBlockRepo{blocks: make(map[uuid.UUID]*Block)}
}

func (m *mockBlockRepo) Create(_ context.Context, b *Block) error {
	m.calls++
	if m.writeErr != nil {
		return m.writeErr
	}
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	m.blocks[b.ID] = &cp
	return nil
}

func (m *mockBlockRepo) GetByID(_ context.Context, id uuid.UUID) (*Block, error) {
	b, ok := m.blocks[id]
	if !ok {
		return nil, ErrBlockNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockBlockRepo) Update(_ context.Context, b *Block) error {
	m.calls++
	if m.writeErr != nil {
		return m.writeErr
	}
	if _, ok := m.blocks[b.ID]; !ok {
		return ErrBlockNotFound
	}
	cp := *b
	m.blocks[b.ID] = &cp
	return nil
}

func (m *mockBlockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.calls++
	if _, ok := m.blocks[id]; !ok {
		return ErrBlockNotFound
	}
	delete(m.blocks, id)
	return nil
}

func (m *mockBlockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]Block, error) {
	var out []Block
	for _, b := range m.blocks {
		if b.DoctorID == doctorID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WorkDate != out[j].WorkDate {
			return out[i].WorkDate < out[j].WorkDate
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (m *mockBlockRepo) ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date calendar.Date) ([]Block, error) {
	all, _ := m.ListByDoctor(ctx, doctorID)
	var out []Block
	for _, b := range all {
		if b.WorkDate == date {
			out = append(out, b)
		}
	}
	return out, nil
}

const today = calendar.Date("2025-06-10")

func newTestManager() (*Manager, *mockBlockRepo) {
	repo := newMockBlockRepo()
	return NewManager(repo, calendar.FixedClock(today), zap.NewNop()), repo
}

func doctor() identity.Principal {
	return identity.Principal{Role: identity.RoleDoctor, ID: uuid.New(), Name: "Dr. Hoa"}
}

// -- Tests --

func TestCreateBlock_Success(t *testing.T) {
	m, repo := newTestManager()
	doc := doctor()

	b, err := m.CreateBlock(context.Background(), doc, BlockInput{WorkDate: "2025-06-10", StartTime: "09:00", EndTime: "12:00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.DoctorID != doc.ID {
		t.Fatalf("block owned by %s, want %s", b.DoctorID, doc.ID)
	}
	if len(repo.blocks) != 1 {
		t.Fatalf("expected 1 stored block, got %d", len(repo.blocks))
	}
}

func TestCreateBlock_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   BlockInput
		want error
	}{
		{"missing date", BlockInput{StartTime: "09:00", EndTime: "10:00"}, ErrIncompleteBlock},
		{"whitespace end", BlockInput{WorkDate: "2025-06-11", StartTime: "09:00", EndTime: "  "}, ErrIncompleteBlock},
		{"end equals start", BlockInput{WorkDate: "2025-06-11", StartTime: "09:00", EndTime: "09:00"}, ErrInvalidTimeRange},
		{"end before start", BlockInput{WorkDate: "2025-06-11", StartTime: "14:00", EndTime: "09:00"}, ErrInvalidTimeRange},
		{"past date", BlockInput{WorkDate: "2025-06-09", StartTime: "09:00", EndTime: "10:00"}, ErrPastWorkDate},
		{"bad date", BlockInput{WorkDate: "10/06/2025", StartTime: "09:00", EndTime: "10:00"}, calendar.ErrInvalidDate},
		{"bad time", BlockInput{WorkDate: "2025-06-11", StartTime: "9am", EndTime: "10:00"}, calendar.ErrInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, repo := newTestManager()
			_, err := m.CreateBlock(context.Background(), doctor(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if repo.calls != 0 {
				t.Fatalf("repository touched %d times on invalid input", repo.calls)
			}
		})
	}
}

func TestCreateBlock_OverlapAllowed(t *testing.T) {
	m, repo := newTestManager()
	doc := doctor()
	ctx := context.Background()

	if _, err := m.CreateBlock(ctx, doc, BlockInput{WorkDate: "2025-06-12", StartTime: "09:00", EndTime: "12:00"}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateBlock(ctx, doc, BlockInput{WorkDate: "2025-06-12", StartTime: "11:00", EndTime: "13:00"}); err != nil {
		t.Fatalf("overlapping block rejected: %v", err)
	}
	if len(repo.blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(repo.blocks))
	}
}

func TestCreateBlock_PatientForbidden(t *testing.T) {
	m, _ := newTestManager()
	patient := identity.Principal{Role: identity.RolePatient, ID: uuid.New()}

	_, err := m.CreateBlock(context.Background(), patient, BlockInput{WorkDate: "2025-06-12", StartTime: "09:00", EndTime: "10:00"})
	if !errors.Is(err, identity.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestCreateBlock_StoreFailure(t *testing.T) {
	m, repo := newTestManager()
	repo.writeErr = errors.New("disk full")

	_, err := m.CreateBlock(context.Background(), doctor(), BlockInput{WorkDate: "2025-06-12", StartTime: "09:00", EndTime: "10:00"})
	if !errors.Is(err, store.ErrWrite) {
		t.Fatalf("err = %v, want store.ErrWrite", err)
	}
}

func TestUpdateBlock_PastDateAllowed(t *testing.T) {
	m, repo := newTestManager()
	doc := doctor()
	existing := &Block{ID: uuid.New(), DoctorID: doc.ID, WorkDate: "2025-06-01", StartTime: "09:00", EndTime: "10:00"}
	repo.blocks[existing.ID] = existing

	b, err := m.UpdateBlock(context.Background(), doc, existing.ID, BlockInput{WorkDate: "2025-06-01", StartTime: "08:00", EndTime: "10:00"})
	if err != nil {
		t.Fatalf("editing a past block should succeed: %v", err)
	}
	if b.StartTime != "08:00" {
		t.Fatalf("start time = %s, want 08:00", b.StartTime)
	}
}

func TestUpdateBlock_RejectsInvertedRange(t *testing.T) {
	m, repo := newTestManager()
	doc := doctor()
	existing := &Block{ID: uuid.New(), DoctorID: doc.ID, WorkDate: "2025-06-20", StartTime: "09:00", EndTime: "10:00"}
	repo.blocks[existing.ID] = existing

	_, err := m.UpdateBlock(context.Background(), doc, existing.ID, BlockInput{WorkDate: "2025-06-20", StartTime: "11:00", EndTime: "10:00"})
	if !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("err = %v, want ErrInvalidTimeRange", err)
	}
	if repo.blocks[existing.ID].StartTime != "09:00" {
		t.Fatal("stored block must be untouched after a rejected update")
	}
}

func TestUpdateAndDelete_OtherDoctorForbidden(t *testing.T) {
	m, repo := newTestManager()
	owner, other := doctor(), doctor()
	existing := &Block{ID: uuid.New(), DoctorID: owner.ID, WorkDate: "2025-06-20", StartTime: "09:00", EndTime: "10:00"}
	repo.blocks[existing.ID] = existing
	ctx := context.Background()

	if _, err := m.UpdateBlock(ctx, other, existing.ID, BlockInput{WorkDate: "2025-06-20", StartTime: "09:00", EndTime: "11:00"}); !errors.Is(err, identity.ErrForbidden) {
		t.Fatalf("update err = %v, want ErrForbidden", err)
	}
	if err := m.DeleteBlock(ctx, other, existing.ID); !errors.Is(err, identity.ErrForbidden) {
		t.Fatalf("delete err = %v, want ErrForbidden", err)
	}
	if _, ok := repo.blocks[existing.ID]; !ok {
		t.Fatal("block should survive a forbidden delete")
	}
}

func TestDeleteBlock(t *testing.T) {
	m, repo := newTestManager()
	doc := doctor()
	existing := &Block{ID: uuid.New(), DoctorID: doc.ID, WorkDate: "2025-05-01", StartTime: "09:00", EndTime: "10:00"}
	repo.blocks[existing.ID] = existing
	ctx := context.Background()

	if err := m.DeleteBlock(ctx, doc, existing.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.DeleteBlock(ctx, doc, existing.ID); !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("second delete err = %v, want ErrBlockNotFound", err)
	}
}

func TestListBlocks_Ordered(t *testing.T) {
	m, _ := newTestManager()
	doc := doctor()
	ctx := context.Background()

	inputs := []BlockInput{
		{WorkDate: "2025-06-12", StartTime: "14:00", EndTime: "16:00"},
		{WorkDate: "2025-06-11", StartTime: "09:00", EndTime: "10:00"},
		{WorkDate: "2025-06-12", StartTime: "08:00", EndTime: "09:00"},
	}
	for _, in := range inputs {
		if _, err := m.CreateBlock(ctx, doc, in); err != nil {
			t.Fatal(err)
		}
	}

	blocks, err := m.ListBlocks(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2025-06-11 09:00", "2025-06-12 08:00", "2025-06-12 14:00"}
	for i, b := range blocks {
		if got := b.WorkDate.String() + " " + b.StartTime.String(); got != want[i] {
			t.Fatalf("blocks[%d] = %s, want %s", i, got, want[i])
		}
	}

	onDate, err := m.BlocksForDate(ctx, doc.ID, "2025-06-12")
	if err != nil {
		t.Fatal(err)
	}
	if len(onDate) != 2 {
		t.Fatalf("expected 2 blocks on 2025-06-12, got %d", len(onDate))
	}
}
