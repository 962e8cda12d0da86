package executor

import (
	"context"
	"testing"
	"time"

	"github.com/voidwell/autodelete/internal/gateway"
	"github.com/voidwell/autodelete/internal/models"
	"github.com/voidwell/autodelete/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// One connection: a second pool connection to :memory: would open a
	// fresh, empty database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.ChannelConfig{}, &models.TrackedMessage{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func newTestExecutor(t *testing.T, db *gorm.DB, adapter gateway.Adapter) *Executor {
	t.Helper()
	e, err := New(Opts{
		Messages:    store.NewMessages(db),
		Deleter:     adapter,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return e
}

func seed(t *testing.T, db *gorm.DB, msgID, chID string) models.TrackedMessage {
	t.Helper()
	m := models.TrackedMessage{
		MessageID: msgID, ChannelID: chID,
		DeleteAt: time.Now().Add(-time.Second), Generation: 1,
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("seed %s: %v", msgID, err)
	}
	return m
}

func countTracked(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	db.Model(&models.TrackedMessage{}).Count(&n)
	return n
}

func TestProcess_SuccessRemovesRecord(t *testing.T) {
	db := openTestDB(t)
	mock := gateway.NewMockAdapter()
	e := newTestExecutor(t, db, mock)
	m := seed(t, db, "M1", "C1")

	ok, err := e.Process(context.Background(), m)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !ok {
		t.Error("expected settled")
	}
	if got := mock.Calls("M1"); got != 1 {
		t.Errorf("delete calls = %d, want exactly 1", got)
	}
	if n := countTracked(t, db); n != 0 {
		t.Errorf("tracked rows = %d, want 0", n)
	}
}

func TestProcess_AlreadyGoneIsSuccess(t *testing.T) {
	db := openTestDB(t)
	mock := gateway.NewMockAdapter()
	mock.Script("M1", gateway.OutcomeAlreadyGone)
	e := newTestExecutor(t, db, mock)
	m := seed(t, db, "M1", "C1")

	ok, err := e.Process(context.Background(), m)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !ok {
		t.Error("already-gone should settle the record")
	}
	if n := countTracked(t, db); n != 0 {
		t.Errorf("tracked rows = %d, want 0", n)
	}
}

func TestProcess_TransientThenSuccess(t *testing.T) {
	db := openTestDB(t)
	mock := gateway.NewMockAdapter()
	mock.Script("M1", gateway.OutcomeTransient, gateway.OutcomeTransient, gateway.OutcomeDeleted)
	e := newTestExecutor(t, db, mock)
	m := seed(t, db, "M1", "C1")

	ok, err := e.Process(context.Background(), m)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !ok {
		t.Error("expected settled after retries")
	}
	if got := mock.Calls("M1"); got != 3 {
		t.Errorf("delete calls = %d, want 3", got)
	}
}

func TestProcess_TransientExhaustedKeepsRecord(t *testing.T) {
	db := openTestDB(t)
	mock := gateway.NewMockAdapter()
	mock.Script("M1",
		gateway.OutcomeTransient, gateway.OutcomeTransient,
		gateway.OutcomeTransient, gateway.OutcomeTransient)
	e := newTestExecutor(t, db, mock)
	m := seed(t, db, "M1", "C1")

	ok, err := e.Process(context.Background(), m)
	if err == nil {
		t.Fatal("expected attempts-exhausted error")
	}
	if ok {
		t.Error("record must not settle on exhausted retries")
	}
	if got := mock.Calls("M1"); got != 3 {
		t.Errorf("delete calls = %d, want maxAttempts=3", got)
	}
	// Record stays overdue so a later pass retries it.
	if n := countTracked(t, db); n != 1 {
		t.Errorf("tracked rows = %d, want 1", n)
	}
}

func TestProcess_PermanentDropsRecord(t *testing.T) {
	db := openTestDB(t)
	mock := gateway.NewMockAdapter()
	mock.Script("M1", gateway.OutcomePermanent)
	e := newTestExecutor(t, db, mock)
	m := seed(t, db, "M1", "C1")

	ok, err := e.Process(context.Background(), m)
	if err == nil {
		t.Fatal("expected permanent-failure error to be reported")
	}
	if !ok {
		t.Error("permanent failure should settle the record")
	}
	if got := mock.Calls("M1"); got != 1 {
		t.Errorf("delete calls = %d, want 1 (no retry on permanent)", got)
	}
	if n := countTracked(t, db); n != 0 {
		t.Errorf("tracked rows = %d, want 0", n)
	}
}

func TestProcess_ContextCancelledDuringBackoff(t *testing.T) {
	db := openTestDB(t)
	mock := gateway.NewMockAdapter()
	mock.Script("M1", gateway.OutcomeTransient)
	e, err := New(Opts{
		Messages:    store.NewMessages(db),
		Deleter:     mock,
		MaxAttempts: 3,
		BaseBackoff: time.Hour,
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	m := seed(t, db, "M1", "C1")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := e.Process(ctx, m); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDispatch_SettlesBatch(t *testing.T) {
	db := openTestDB(t)
	mock := gateway.NewMockAdapter()
	e := newTestExecutor(t, db, mock)

	batch := []models.TrackedMessage{
		seed(t, db, "M1", "C1"),
		seed(t, db, "M2", "C1"),
		seed(t, db, "M3", "C2"),
	}

	settled := e.Dispatch(context.Background(), batch)
	if settled != 3 {
		t.Errorf("settled = %d, want 3", settled)
	}
	if n := countTracked(t, db); n != 0 {
		t.Errorf("tracked rows = %d, want 0", n)
	}
	for _, id := range []string{"M1", "M2", "M3"} {
		if mock.Calls(id) != 1 {
			t.Errorf("calls(%s) = %d, want 1", id, mock.Calls(id))
		}
	}
}

func TestDispatch_CountsOnlySettled(t *testing.T) {
	db := openTestDB(t)
	mock := gateway.NewMockAdapter()
	mock.Script("M2",
		gateway.OutcomeTransient, gateway.OutcomeTransient, gateway.OutcomeTransient)
	e := newTestExecutor(t, db, mock)

	batch := []models.TrackedMessage{
		seed(t, db, "M1", "C1"),
		seed(t, db, "M2", "C2"),
	}

	settled := e.Dispatch(context.Background(), batch)
	if settled != 1 {
		t.Errorf("settled = %d, want 1", settled)
	}
	if n := countTracked(t, db); n != 1 {
		t.Errorf("tracked rows = %d, want 1 (M2 left for retry)", n)
	}
}

func TestDispatch_EmptyBatch(t *testing.T) {
	db := openTestDB(t)
	e := newTestExecutor(t, db, gateway.NewMockAdapter())
	if got := e.Dispatch(context.Background(), nil); got != 0 {
		t.Errorf("settled = %d, want 0", got)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{Deleter: gateway.NewMockAdapter()}); err == nil {
		t.Error("expected error for missing message store")
	}
	if _, err := New(Opts{Messages: store.NewMessages(openTestDB(t))}); err == nil {
		t.Error("expected error for missing deleter")
	}
}
