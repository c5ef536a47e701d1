package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"agendafit.app/internal/checkin"
	"agendafit.app/internal/ids"
	"agendafit.app/internal/migrate"
	"agendafit.app/internal/service"
	"agendafit.app/internal/store/pg"
)

// smoke-checkin runs concurrent check-ins for a fresh booking against a real
// Postgres and verifies exactly one of them consumed a credit.
func main() {
	logger := zap.Must(zap.NewDevelopment())
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(dsn, 10, 10)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	mgr, err := migrate.NewManager(store.DB())
	if err != nil {
		log.Fatalf("init migrations: %v", err)
	}
	if _, err := mgr.Up(ctx); err != nil {
		log.Fatalf("migrate up: %v", err)
	}

	bookingID := "smoke-" + ids.New()
	studentID := "student-" + bookingID
	teacherID := "teacher-" + bookingID
	_, err = store.DB().ExecContext(ctx, `
		insert into bookings (id, teacher_id, student_id, franchise_id, status, status_canonical, duration)
		values ($1, $2, $3, 'smoke', 'PAID', 'PAID', 60)`, bookingID, teacherID, studentID)
	if err != nil {
		log.Fatalf("seed booking: %v", err)
	}
	if _, err := store.Deposit(ctx, studentID, 3); err != nil {
		log.Fatalf("seed credits: %v", err)
	}

	svc := service.NewCheckinService(store, service.WithLogger(logger.Named("checkin")))
	user := checkin.User{ID: teacherID, Role: checkin.RoleTeacher}

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		failed  []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Checkin(ctx, bookingID, user, checkin.MethodQRCode)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && !errors.Is(err, service.ErrConflict):
				failed = append(failed, err)
			case err == nil && res.Granted():
				granted++
			}
		}()
	}
	wg.Wait()

	if len(failed) > 0 {
		log.Fatalf("unexpected check-in errors: %v", errors.Join(failed...))
	}
	if granted != 1 {
		log.Fatalf("expected exactly one grant, got %d", granted)
	}

	student, err := store.Balance(ctx, studentID)
	if err != nil {
		log.Fatalf("student balance: %v", err)
	}
	teacher, err := store.Balance(ctx, teacherID)
	if err != nil {
		log.Fatalf("teacher balance: %v", err)
	}
	if student.Credits != 2 || teacher.MinutesTaught != 60 {
		log.Fatalf("unexpected balances: student=%d teacher_minutes=%d", student.Credits, teacher.MinutesTaught)
	}

	fmt.Printf("check-in smoke test passed: booking=%s\n", bookingID)
}
