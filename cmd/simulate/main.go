package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/calendar"
	"github.com/Originnnn/appointment/internal/config"
	"github.com/Originnnn/appointment/internal/db"
	"github.com/Originnnn/appointment/internal/logger"
)

// simulate drives concurrent booking traffic at a running api-server and
// then checks the database for slots holding more than one active booking.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	StatusRatio  float64
	ReadRatio    float64
	PatientLimit int
	SlotLimit    int
}

type Slot struct {
	DoctorID uuid.UUID
	Date     string
	Time     string
}

type booked struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
}

type DataPool struct {
	Patients []uuid.UUID
	Slots    []Slot

	mu     sync.RWMutex
	booked []booked
}

func (dp *DataPool) AddBooking(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.booked = append(dp.booked, b)
}

func (dp *DataPool) RandomBooking(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.booked) == 0 {
		return booked{}, false
	}
	return dp.booked[rng.Intn(len(dp.booked))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, outcome outcome) {
	atomic.AddInt64(&om.Total, 1)
	switch outcome {
	case outcomeSuccess:
		atomic.AddInt64(&om.Success, 1)
	case outcomeConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

// Percentile returns the p-th percentile latency, p in [0, 100].
func (om *OperationMetrics) Percentile(p int) time.Duration {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConflict
	outcomeError
)

type Metrics struct {
	Booking OperationMetrics
	Status  OperationMetrics
	List    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     *zap.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.Must(baseCfg.Env).Named("simulate")
	defer func() { _ = log.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	log.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking_ratio", cfg.BookingRatio),
		zap.Float64("status_ratio", cfg.StatusRatio),
		zap.Float64("read_ratio", cfg.ReadRatio))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	today := calendar.SystemClock{Location: baseCfg.Location}.Today()
	dataPool, err := loadDataPool(ctx, pgPool, cfg, today)
	if err != nil {
		log.Fatal("load data pool", zap.Error(err))
	}
	log.Info("data loaded", zap.Int("patients", len(dataPool.Patients)), zap.Int("slots", len(dataPool.Slots)))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	sim.Run()
	sim.PrintReport()

	doubles, err := countDoubleBookings(context.Background(), pgPool)
	if err != nil {
		log.Fatal("double booking check", zap.Error(err))
	}
	fmt.Printf("Slots with more than one active booking: %d\n", doubles)
	if doubles > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 20),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.6),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.2),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 500),
		// Few slots and many workers keeps contention high.
		SlotLimit: getInt("SIM_SLOT_LIMIT", 50),
	}

	total := cfg.BookingRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

// loadDataPool picks bookable targets: the start and end boundary of upcoming
// working blocks.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig, today calendar.Date) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT patient_id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `
		SELECT doctor_id, work_date, start_time, end_time
		FROM working_schedules
		WHERE work_date >= $1
		ORDER BY work_date, start_time
		LIMIT $2
	`, today.String(), cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load working schedules: %w", err)
	}
	for rows.Next() {
		var (
			doctorID         uuid.UUID
			date, start, end string
		)
		if err := rows.Scan(&doctorID, &date, &start, &end); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Slots = append(dataPool.Slots,
			Slot{DoctorID: doctorID, Date: date, Time: start},
			Slot{DoctorID: doctorID, Date: date, Time: end},
		)
	}
	rows.Close()

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("no upcoming working schedules loaded")
	}
	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.StatusRatio:
			s.doStatusChange(ctx, rng)
		default:
			s.doList(ctx, rng)
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	body := map[string]string{
		"doctor_id":        slot.DoctorID.String(),
		"appointment_date": slot.Date,
		"appointment_time": slot.Time,
		"note":             "load test",
	}

	var created struct {
		ID uuid.UUID `json:"appointment_id"`
	}
	start := time.Now()
	status, code, err := s.call(ctx, http.MethodPost, "/appointments", "patient", patientID, body, &created)
	latency := time.Since(start)

	switch {
	case err == nil && status == http.StatusCreated:
		s.pool.AddBooking(booked{ID: created.ID, PatientID: patientID, DoctorID: slot.DoctorID})
		s.metrics.Booking.Record(latency, outcomeSuccess)
	case err == nil && code == "slot_already_taken":
		s.metrics.Booking.Record(latency, outcomeConflict)
	default:
		s.metrics.Booking.Record(latency, outcomeError)
	}
}

// doStatusChange has the doctor confirm or the patient cancel a booking made
// earlier in the run. Cancelling frees the slot for the next booker.
func (s *Simulator) doStatusChange(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}

	role, actorID, target := "doctor", b.DoctorID, "confirmed"
	if rng.Intn(2) == 0 {
		role, actorID, target = "patient", b.PatientID, "cancelled"
	}

	start := time.Now()
	status, code, err := s.call(ctx, http.MethodPatch, "/appointments/"+b.ID.String()+"/status", role, actorID,
		map[string]string{"status": target}, nil)
	latency := time.Since(start)

	switch {
	case err == nil && status == http.StatusOK:
		s.metrics.Status.Record(latency, outcomeSuccess)
	case err == nil && (code == "invalid_status_transition" || code == "slot_already_taken"):
		s.metrics.Status.Record(latency, outcomeConflict)
	default:
		s.metrics.Status.Record(latency, outcomeError)
	}
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	status, _, err := s.call(ctx, http.MethodGet, "/appointments", "patient", patientID, nil, nil)
	latency := time.Since(start)

	if err == nil && status == http.StatusOK {
		s.metrics.List.Record(latency, outcomeSuccess)
		return
	}
	s.metrics.List.Record(latency, outcomeError)
}

// call sends one request as the given actor. It returns the HTTP status and,
// for error responses, the machine error code.
func (s *Simulator) call(ctx context.Context, method, path, role string, actorID uuid.UUID, body, out any) (int, string, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Role", role)
	req.Header.Set("X-Actor-ID", actorID.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return resp.StatusCode, e.Error, nil
	}
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, "", nil
}

func countDoubleBookings(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT 1
			FROM appointments
			WHERE status IN ('pending', 'confirmed')
			GROUP BY doctor_id, appointment_date, appointment_time
			HAVING count(*) > 1
		) AS doubles
	`).Scan(&n)
	return n, err
}

func (s *Simulator) PrintReport() {
	line := strings.Repeat("=", 80)
	fmt.Println("\n" + line)
	fmt.Println("SIMULATION REPORT")
	fmt.Println(line)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Target slots: %d\n\n", len(s.pool.Slots))

	printOperationReport("Booking", "slot_already_taken", &s.metrics.Booking)
	printOperationReport("Status change", "rejected", &s.metrics.Status)
	printOperationReport("List appointments", "", &s.metrics.List)
}

func printOperationReport(name, conflictLabel string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  %s: %d (%.1f%%)\n", conflictLabel, conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: p50=%s p95=%s p99=%s\n",
		om.Percentile(50).Round(time.Millisecond),
		om.Percentile(95).Round(time.Millisecond),
		om.Percentile(99).Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
