package availability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carelane/hms-server/cmd/models"
	"github.com/carelane/hms-server/cmd/utils"
	"github.com/carelane/hms-server/service/booking"
	"github.com/gorilla/mux"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("getting sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{}, &models.Doctor{}, &models.Patient{},
		&models.DoctorAvailability{}, &models.Appointment{},
	); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func seedDoctorWithUser(t *testing.T, db *gorm.DB) (*models.User, *models.Doctor) {
	t.Helper()

	user := models.User{Username: "dr-test", PasswordHash: "x", Role: models.RoleDoctor}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("creating user: %v", err)
	}
	doctor := models.Doctor{UserID: user.ID, FullName: "Dr Test", Specialization: "Dermatology"}
	if err := db.Create(&doctor).Error; err != nil {
		t.Fatalf("creating doctor: %v", err)
	}
	return &user, &doctor
}

// asUser injects the resolved user the way the role middleware does.
func asUser(req *http.Request, user *models.User) *http.Request {
	ctx := context.WithValue(req.Context(), utils.UserKey, user)
	return req.WithContext(ctx)
}

func postAvailability(t *testing.T, db *gorm.DB, user *models.User, flags map[string]bool) *httptest.ResponseRecorder {
	t.Helper()

	router := mux.NewRouter()
	NewAvailabilityHandler(db).RegisterRoutes(router)

	payload, _ := json.Marshal(flags)
	req := httptest.NewRequest(http.MethodPost, "/availability", bytes.NewReader(payload))
	req = asUser(req, user)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSetAvailability_CreatesRowsForFlaggedDaysOnly(t *testing.T) {
	db := newTestDB(t)
	user, doctor := seedDoctorWithUser(t, db)

	rec := postAvailability(t, db, user, map[string]bool{
		"morning_0": true,
		"evening_2": true,
		"morning_4": true, "evening_4": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var rows []models.DoctorAvailability
	if err := db.Where("doctor_id = ?", doctor.ID).Order("date").Find(&rows).Error; err != nil {
		t.Fatalf("loading rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows (days 0, 2, 4), got %d", len(rows))
	}

	today := models.DateOf(time.Now())
	expect := []struct {
		offset  int
		morning bool
		evening bool
	}{
		{0, true, false},
		{2, false, true},
		{4, true, true},
	}
	for i, e := range expect {
		wantDate := today.AddDate(0, 0, e.offset)
		if !models.DateOf(rows[i].Date).Equal(wantDate) {
			t.Errorf("row %d: expected date %s, got %s", i, wantDate, rows[i].Date)
		}
		if rows[i].MorningSlot != e.morning || rows[i].EveningSlot != e.evening {
			t.Errorf("row %d: flags morning=%v evening=%v, want %v/%v",
				i, rows[i].MorningSlot, rows[i].EveningSlot, e.morning, e.evening)
		}
		if rows[i].MaxAppointmentsPerSlot != models.DefaultSlotCapacity {
			t.Errorf("row %d: capacity %d, want %d", i, rows[i].MaxAppointmentsPerSlot, models.DefaultSlotCapacity)
		}
	}
}

func TestSetAvailability_ReplaceIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	user, doctor := seedDoctorWithUser(t, db)

	flags := map[string]bool{"morning_0": true, "morning_1": true}
	for i := 0; i < 3; i++ {
		if rec := postAvailability(t, db, user, flags); rec.Code != http.StatusOK {
			t.Fatalf("submission %d failed: %d", i, rec.Code)
		}
	}

	var count int64
	db.Model(&models.DoctorAvailability{}).Where("doctor_id = ?", doctor.ID).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 rows after repeated submissions, got %d", count)
	}
}

func TestSetAvailability_ShrinkingWindowRemovesRows(t *testing.T) {
	db := newTestDB(t)
	user, doctor := seedDoctorWithUser(t, db)

	if rec := postAvailability(t, db, user, map[string]bool{
		"morning_0": true, "morning_1": true, "morning_2": true,
	}); rec.Code != http.StatusOK {
		t.Fatalf("first submission failed: %d", rec.Code)
	}

	if rec := postAvailability(t, db, user, map[string]bool{"evening_1": true}); rec.Code != http.StatusOK {
		t.Fatalf("second submission failed: %d", rec.Code)
	}

	var rows []models.DoctorAvailability
	db.Where("doctor_id = ?", doctor.ID).Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("expected old rows replaced by 1 row, got %d", len(rows))
	}
	if rows[0].MorningSlot || !rows[0].EveningSlot {
		t.Errorf("expected evening-only row, got morning=%v evening=%v",
			rows[0].MorningSlot, rows[0].EveningSlot)
	}
}

func TestWindow_LiveCountsFollowBookAndCancel(t *testing.T) {
	db := newTestDB(t)
	_, doctor := seedDoctorWithUser(t, db)

	today := models.DateOf(time.Now())
	if err := db.Create(&models.DoctorAvailability{
		DoctorID:               doctor.ID,
		Date:                   today,
		MorningSlot:            true,
		MaxAppointmentsPerSlot: models.DefaultSlotCapacity,
	}).Error; err != nil {
		t.Fatalf("creating availability: %v", err)
	}

	patients := make([]*models.Patient, 2)
	for i := range patients {
		u := models.User{Username: fmt.Sprintf("p%d", i), PasswordHash: "x", Role: models.RolePatient}
		db.Create(&u)
		patients[i] = &models.Patient{UserID: u.ID, FullName: u.Username}
		db.Create(patients[i])
	}

	a1, err := booking.Book(db, patients[0].ID, doctor.ID, today, models.SlotMorning)
	if err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if _, err := booking.Book(db, patients[1].ID, doctor.ID, today, models.SlotMorning); err != nil {
		t.Fatalf("second booking failed: %v", err)
	}

	days, err := Window(db, doctor.ID, time.Now(), 7)
	if err != nil {
		t.Fatalf("window failed: %v", err)
	}
	if len(days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(days))
	}
	if !days[0].Available || days[0].Morning.Booked != 2 {
		t.Errorf("day 0: expected available with 2 booked, got available=%v booked=%d",
			days[0].Available, days[0].Morning.Booked)
	}
	for i := 1; i < 7; i++ {
		if days[i].Available {
			t.Errorf("day %d: expected unavailable (no row)", i)
		}
	}

	if _, err := booking.Cancel(db, booking.Actor{Role: models.RoleAdmin}, a1.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	days, err = Window(db, doctor.ID, time.Now(), 7)
	if err != nil {
		t.Fatalf("window after cancel failed: %v", err)
	}
	if days[0].Morning.Booked != 1 {
		t.Errorf("expected booked count 1 after cancel, got %d", days[0].Morning.Booked)
	}

	// The stored counter is refreshed as a display cache.
	var record models.DoctorAvailability
	db.Where("doctor_id = ? AND date = ?", doctor.ID, today).First(&record)
	if record.MorningBooked != 1 {
		t.Errorf("expected cached counter refreshed to 1, got %d", record.MorningBooked)
	}
}
