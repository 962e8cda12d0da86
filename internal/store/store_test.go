package store

import (
	"errors"
	"testing"
	"time"

	"github.com/voidwell/autodelete/internal/models"
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

// ---------------------------------------------------------------------------
// Channels
// ---------------------------------------------------------------------------

func TestEnable_CreatesConfig(t *testing.T) {
	ch := NewChannels(openTestDB(t))

	cfg, err := ch.Enable("C1", 10*time.Second)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !cfg.Enabled {
		t.Error("expected enabled")
	}
	if cfg.Generation != 1 {
		t.Errorf("generation = %d, want 1", cfg.Generation)
	}
	if cfg.Delay() != 10*time.Second {
		t.Errorf("delay = %v, want 10s", cfg.Delay())
	}
}

func TestEnable_BumpsGeneration(t *testing.T) {
	ch := NewChannels(openTestDB(t))

	if _, err := ch.Enable("C1", 10*time.Second); err != nil {
		t.Fatalf("enable: %v", err)
	}
	cfg, err := ch.Enable("C1", 20*time.Second)
	if err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if cfg.Generation != 2 {
		t.Errorf("generation = %d, want 2", cfg.Generation)
	}
	if cfg.Delay() != 20*time.Second {
		t.Errorf("delay = %v, want 20s", cfg.Delay())
	}
}

func TestDisable_KeepsRowAndBumpsGeneration(t *testing.T) {
	ch := NewChannels(openTestDB(t))

	if _, err := ch.Enable("C1", 10*time.Second); err != nil {
		t.Fatalf("enable: %v", err)
	}
	cfg, err := ch.Disable("C1")
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if cfg.Enabled {
		t.Error("expected disabled")
	}
	if cfg.Generation != 2 {
		t.Errorf("generation = %d, want 2", cfg.Generation)
	}

	got, err := ch.Get("C1")
	if err != nil {
		t.Fatalf("get after disable: %v", err)
	}
	if got.Enabled {
		t.Error("row should persist disabled")
	}
}

func TestGet_NotFound(t *testing.T) {
	ch := NewChannels(openTestDB(t))
	if _, err := ch.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListEnabled_ExcludesDisabled(t *testing.T) {
	ch := NewChannels(openTestDB(t))

	ch.Enable("C1", time.Second)
	ch.Enable("C2", time.Second)
	ch.Disable("C2")

	cfgs, err := ch.ListEnabled()
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(cfgs) != 1 || cfgs[0].ChannelID != "C1" {
		t.Errorf("enabled = %+v, want just C1", cfgs)
	}

	all, err := ch.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("list = %d rows, want 2", len(all))
	}
}

func TestMutation_PurgesStaleRecords(t *testing.T) {
	db := openTestDB(t)
	ch := NewChannels(db)
	msgs := NewMessages(db)

	cfg, _ := ch.Enable("C1", 10*time.Second)
	track(t, msgs, "M1", "C1", time.Now(), cfg.Generation)

	// Re-enable with a new delay: M1 belongs to generation 1 and must go.
	if _, err := ch.Enable("C1", 20*time.Second); err != nil {
		t.Fatalf("re-enable: %v", err)
	}

	var n int64
	db.Model(&models.TrackedMessage{}).Count(&n)
	if n != 0 {
		t.Errorf("tracked rows = %d, want 0 after generation bump", n)
	}
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

func track(t *testing.T, s *Messages, msgID, chID string, at time.Time, gen int64) {
	t.Helper()
	err := s.Track(&models.TrackedMessage{
		MessageID:  msgID,
		ChannelID:  chID,
		DeleteAt:   at,
		Generation: gen,
	})
	if err != nil {
		t.Fatalf("track %s: %v", msgID, err)
	}
}

func TestTrack_Duplicate(t *testing.T) {
	db := openTestDB(t)
	msgs := NewMessages(db)

	track(t, msgs, "M1", "C1", time.Now(), 1)
	err := msgs.Track(&models.TrackedMessage{
		MessageID: "M1", ChannelID: "C1", DeleteAt: time.Now(), Generation: 1,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}

	var n int64
	db.Model(&models.TrackedMessage{}).Count(&n)
	if n != 1 {
		t.Errorf("tracked rows = %d, want exactly 1", n)
	}
}

func TestPopDue_OrderAndFencing(t *testing.T) {
	db := openTestDB(t)
	ch := NewChannels(db)
	msgs := NewMessages(db)

	cfg, _ := ch.Enable("C1", time.Second)
	now := time.Now()

	track(t, msgs, "M2", "C1", now.Add(-time.Second), cfg.Generation)
	track(t, msgs, "M1", "C1", now.Add(-time.Second), cfg.Generation)
	track(t, msgs, "M3", "C1", now.Add(-2*time.Second), cfg.Generation)
	// Stale record: wrong generation, must never surface.
	if err := db.Create(&models.TrackedMessage{
		MessageID: "MX", ChannelID: "C1", DeleteAt: now.Add(-time.Hour), Generation: cfg.Generation - 1,
	}).Error; err != nil {
		t.Fatalf("insert stale: %v", err)
	}
	// Future record, not due.
	track(t, msgs, "M4", "C1", now.Add(time.Hour), cfg.Generation)

	due, err := msgs.PopDue(now, 10)
	if err != nil {
		t.Fatalf("pop due: %v", err)
	}
	var ids []string
	for _, m := range due {
		ids = append(ids, m.MessageID)
	}
	want := []string{"M3", "M1", "M2"}
	if len(ids) != len(want) {
		t.Fatalf("due = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("due[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestPopDue_Limit(t *testing.T) {
	db := openTestDB(t)
	ch := NewChannels(db)
	msgs := NewMessages(db)

	cfg, _ := ch.Enable("C1", time.Second)
	now := time.Now()
	track(t, msgs, "M1", "C1", now.Add(-3*time.Second), cfg.Generation)
	track(t, msgs, "M2", "C1", now.Add(-2*time.Second), cfg.Generation)
	track(t, msgs, "M3", "C1", now.Add(-1*time.Second), cfg.Generation)

	due, err := msgs.PopDue(now, 2)
	if err != nil {
		t.Fatalf("pop due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("len(due) = %d, want 2", len(due))
	}
	if due[0].MessageID != "M1" || due[1].MessageID != "M2" {
		t.Errorf("due = %v, want M1,M2", due)
	}
}

func TestPopDue_DoesNotRemove(t *testing.T) {
	db := openTestDB(t)
	ch := NewChannels(db)
	msgs := NewMessages(db)

	cfg, _ := ch.Enable("C1", time.Second)
	track(t, msgs, "M1", "C1", time.Now().Add(-time.Second), cfg.Generation)

	if _, err := msgs.PopDue(time.Now(), 10); err != nil {
		t.Fatalf("pop due: %v", err)
	}
	again, err := msgs.PopDue(time.Now(), 10)
	if err != nil {
		t.Fatalf("pop due again: %v", err)
	}
	if len(again) != 1 {
		t.Errorf("second pop = %d rows, want 1 (pop must not remove)", len(again))
	}
}

func TestPopDue_ExcludesDisabledChannel(t *testing.T) {
	db := openTestDB(t)
	ch := NewChannels(db)
	msgs := NewMessages(db)

	cfg, _ := ch.Enable("C1", time.Second)
	track(t, msgs, "M1", "C1", time.Now().Add(-time.Second), cfg.Generation)
	if _, err := ch.Disable("C1"); err != nil {
		t.Fatalf("disable: %v", err)
	}

	due, err := msgs.PopDue(time.Now(), 10)
	if err != nil {
		t.Fatalf("pop due: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("due = %v, want empty after disable", due)
	}
}

func TestPurgeStale_CountsRemoved(t *testing.T) {
	db := openTestDB(t)
	msgs := NewMessages(db)

	for _, m := range []models.TrackedMessage{
		{MessageID: "M1", ChannelID: "C1", DeleteAt: time.Now(), Generation: 1},
		{MessageID: "M2", ChannelID: "C1", DeleteAt: time.Now(), Generation: 1},
		{MessageID: "M3", ChannelID: "C1", DeleteAt: time.Now(), Generation: 2},
		{MessageID: "M4", ChannelID: "C2", DeleteAt: time.Now(), Generation: 1},
	} {
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, err := msgs.PurgeStale("C1", 2)
	if err != nil {
		t.Fatalf("purge stale: %v", err)
	}
	if n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}

	var left int64
	db.Model(&models.TrackedMessage{}).Count(&left)
	if left != 2 {
		t.Errorf("rows left = %d, want 2 (M3 and other-channel M4)", left)
	}
}

func TestNextDeadline(t *testing.T) {
	db := openTestDB(t)
	ch := NewChannels(db)
	msgs := NewMessages(db)

	if _, ok, err := msgs.NextDeadline(); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v, want none", ok, err)
	}

	cfg, _ := ch.Enable("C1", time.Second)
	early := time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second)
	track(t, msgs, "M1", "C1", early.Add(time.Hour), cfg.Generation)
	track(t, msgs, "M2", "C1", early, cfg.Generation)

	got, ok, err := msgs.NextDeadline()
	if err != nil {
		t.Fatalf("next deadline: %v", err)
	}
	if !ok {
		t.Fatal("expected a deadline")
	}
	if !got.UTC().Truncate(time.Second).Equal(early) {
		t.Errorf("deadline = %v, want %v", got, early)
	}
}

func TestPendingCounts(t *testing.T) {
	db := openTestDB(t)
	ch := NewChannels(db)
	msgs := NewMessages(db)

	c1, _ := ch.Enable("C1", time.Second)
	c2, _ := ch.Enable("C2", time.Second)
	track(t, msgs, "M1", "C1", time.Now(), c1.Generation)
	track(t, msgs, "M2", "C1", time.Now(), c1.Generation)
	track(t, msgs, "M3", "C2", time.Now(), c2.Generation)

	total, err := msgs.PendingCount()
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}

	byCh, err := msgs.PendingByChannel()
	if err != nil {
		t.Fatalf("pending by channel: %v", err)
	}
	if byCh["C1"] != 2 || byCh["C2"] != 1 {
		t.Errorf("by channel = %v", byCh)
	}
}

func TestRemove_AbsentIsNoError(t *testing.T) {
	msgs := NewMessages(openTestDB(t))
	if err := msgs.Remove("nope"); err != nil {
		t.Errorf("remove absent: %v", err)
	}
}
