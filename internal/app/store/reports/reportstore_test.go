package reportstore_test

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	reportstore "github.com/civicwatch/civicwatch/internal/app/store/reports"
	"github.com/civicwatch/civicwatch/internal/app/system/chrono"
	"github.com/civicwatch/civicwatch/internal/domain/models"
	"github.com/civicwatch/civicwatch/internal/testutil"
)

func validReport(by models.User) models.SecurityReport {
	return models.SecurityReport{
		UserID:      by.ID,
		UserEmail:   by.Email,
		UserName:    by.Name,
		Title:       "Stolen bicycle",
		Description: "Bicycle taken from the rack outside the library.",
		Category:    models.CategoryTheft,
		Priority:    models.PriorityMedium,
		Location:    models.Location{Latitude: 19.4326, Longitude: -99.1332},
	}
}

func TestStore_Create_ForcesPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	citizen := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")
	officerID := primitive.NewObjectID()
	resolvedAt := chrono.Now()

	r := validReport(citizen)
	r.Status = models.StatusResolved
	r.AssignedTo = &officerID
	r.ResolvedAt = &resolvedAt

	created, err := store.Create(ctx, r)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Status != models.StatusPending {
		t.Errorf("status = %q, want pending regardless of input", created.Status)
	}
	if created.AssignedTo != nil {
		t.Error("assignedTo should be cleared on create")
	}
	if created.ResolvedAt != nil {
		t.Error("resolvedAt should be cleared on create")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be stamped")
	}
}

func TestStore_Create_SanitizesText(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	citizen := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")
	r := validReport(citizen)
	r.Title = "  Break-in<script>alert(1)</script>  "
	r.Description = "<b>Window</b> smashed"

	created, err := store.Create(ctx, r)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Title != "Break-in" {
		t.Errorf("title = %q", created.Title)
	}
	if created.Description != "Window smashed" {
		t.Errorf("description = %q", created.Description)
	}
}

func TestStore_Create_InvalidEnums(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	citizen := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")

	r := validReport(citizen)
	r.Category = "arson"
	if _, err := store.Create(ctx, r); err == nil {
		t.Error("expected error for unknown category")
	}

	r = validReport(citizen)
	r.Priority = "urgent"
	if _, err := store.Create(ctx, r); err == nil {
		t.Error("expected error for unknown priority")
	}
}

// Full lifecycle: a citizen files a theft report, an admin assigns an
// officer, the officer resolves it.
func TestStore_Lifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	citizen := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")
	officer := fixtures.CreateOfficer(ctx, "Benito", "benito@example.com")

	r := validReport(citizen)
	r.Title = "Robo"
	r.Category = models.CategoryTheft
	r.Priority = models.PriorityHigh

	created, err := store.Create(ctx, r)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Status != models.StatusPending || created.AssignedTo != nil {
		t.Fatalf("fresh report = %q assigned=%v", created.Status, created.AssignedTo)
	}

	if err := store.Assign(ctx, created.ID, officer.ID); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	got, err := store.GetByID(ctx, created.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID after assign: %v, %v", got, err)
	}
	if got.Status != models.StatusInProgress {
		t.Errorf("status = %q, want in_progress", got.Status)
	}
	if got.AssignedTo == nil || *got.AssignedTo != officer.ID {
		t.Errorf("assignedTo = %v, want %v", got.AssignedTo, officer.ID)
	}

	if err := store.UpdateStatus(ctx, created.ID, models.StatusResolved, nil); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ = store.GetByID(ctx, created.ID)
	if got.Status != models.StatusResolved {
		t.Errorf("status = %q, want resolved", got.Status)
	}
	if got.ResolvedAt == nil {
		t.Error("resolvedAt should be stamped on resolution")
	}
	if got.AssignedTo == nil || *got.AssignedTo != officer.ID {
		t.Error("resolution must not clear assignedTo")
	}
}

func TestStore_Assign_RejectsCitizen(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	citizen := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")
	report := fixtures.CreateReport(ctx, citizen, "Robo", time.Now())

	err := store.Assign(ctx, report.ID, citizen.ID)
	if !errors.Is(err, reportstore.ErrAssigneeNotResponder) {
		t.Errorf("err = %v, want ErrAssigneeNotResponder", err)
	}

	err = store.Assign(ctx, report.ID, primitive.NewObjectID())
	if !errors.Is(err, reportstore.ErrAssigneeNotFound) {
		t.Errorf("err = %v, want ErrAssigneeNotFound", err)
	}
}

func TestStore_Assign_AbsentReport(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	officer := fixtures.CreateOfficer(ctx, "Benito", "benito@example.com")

	err := store.Assign(ctx, primitive.NewObjectID(), officer.ID)
	if !errors.Is(err, reportstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_UpdateStatus_ResolvedAtStampedOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	citizen := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")
	report := fixtures.CreateReport(ctx, citizen, "Robo", time.Now())

	if err := store.UpdateStatus(ctx, report.ID, models.StatusResolved, nil); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	first, _ := store.GetByID(ctx, report.ID)
	if first.ResolvedAt == nil {
		t.Fatal("resolvedAt not stamped")
	}

	time.Sleep(10 * time.Millisecond)
	if err := store.UpdateStatus(ctx, report.ID, models.StatusResolved, nil); err != nil {
		t.Fatalf("second UpdateStatus failed: %v", err)
	}
	second, _ := store.GetByID(ctx, report.ID)
	if !second.ResolvedAt.Equal(first.ResolvedAt.Time) {
		t.Errorf("resolvedAt changed on re-resolution: %v → %v", first.ResolvedAt, second.ResolvedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt.Time) {
		t.Error("updatedAt should still advance")
	}
}

func TestStore_UpdatedAtNeverMovesBackwards(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	citizen := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")
	officer := fixtures.CreateOfficer(ctx, "Benito", "benito@example.com")

	created, err := store.Create(ctx, validReport(citizen))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Both stamps come from the same server-side write, so a fresh
	// report starts with createdAt == updatedAt.
	if !created.UpdatedAt.Equal(created.CreatedAt.Time) {
		t.Errorf("createdAt %v != updatedAt %v on create", created.CreatedAt, created.UpdatedAt)
	}

	// Every transition stamps updatedAt from the same server clock, so
	// it can never move backwards regardless of this process's clock.
	time.Sleep(5 * time.Millisecond)
	if err := store.Assign(ctx, created.ID, officer.ID); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	assigned, _ := store.GetByID(ctx, created.ID)
	if assigned.UpdatedAt.Before(created.UpdatedAt.Time) {
		t.Errorf("updatedAt moved backwards on assign: %v → %v", created.UpdatedAt, assigned.UpdatedAt)
	}

	time.Sleep(5 * time.Millisecond)
	if err := store.UpdateStatus(ctx, created.ID, models.StatusResolved, nil); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	resolved, _ := store.GetByID(ctx, created.ID)
	if resolved.UpdatedAt.Before(assigned.UpdatedAt.Time) {
		t.Errorf("updatedAt moved backwards on resolve: %v → %v", assigned.UpdatedAt, resolved.UpdatedAt)
	}
	if !resolved.CreatedAt.Equal(created.CreatedAt.Time) {
		t.Errorf("createdAt changed after transitions: %v → %v", created.CreatedAt, resolved.CreatedAt)
	}
}

func TestStore_UpdateStatus_Notes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	citizen := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")
	report := fixtures.CreateReport(ctx, citizen, "Robo", time.Now())

	notes := "<i>Suspect</i> identified"
	if err := store.UpdateStatus(ctx, report.ID, models.StatusInProgress, &notes); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ := store.GetByID(ctx, report.ID)
	if got.Notes != "Suspect identified" {
		t.Errorf("notes = %q", got.Notes)
	}
}

func TestStore_Queries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")
	luis := fixtures.CreateCitizen(ctx, "Luis", "luis@example.com")

	base := time.Now().Add(-time.Hour)
	fixtures.CreateReport(ctx, ana, "first", base)
	fixtures.CreateReport(ctx, luis, "second", base.Add(time.Minute))
	fixtures.CreateReport(ctx, ana, "third", base.Add(2*time.Minute))

	byAna, err := store.ByUser(ctx, ana.ID)
	if err != nil {
		t.Fatalf("ByUser failed: %v", err)
	}
	if len(byAna) != 2 {
		t.Fatalf("ByUser = %d reports, want 2", len(byAna))
	}
	if byAna[0].Title != "third" || byAna[1].Title != "first" {
		t.Errorf("ByUser order = %q, %q; want newest first", byAna[0].Title, byAna[1].Title)
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Title != "third" || recent[1].Title != "second" {
		t.Errorf("Recent = %v", titles(recent))
	}

	pending, err := store.ByStatus(ctx, models.StatusPending)
	if err != nil {
		t.Fatalf("ByStatus failed: %v", err)
	}
	if len(pending) != 3 {
		t.Errorf("ByStatus(pending) = %d, want 3", len(pending))
	}
}

func TestStore_CriticalPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")
	officer := fixtures.CreateOfficer(ctx, "Benito", "benito@example.com")

	r := validReport(ana)
	r.Priority = models.PriorityCritical
	critical, err := store.Create(ctx, r)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	r = validReport(ana)
	r.Priority = models.PriorityCritical
	handled, err := store.Create(ctx, r)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Assign(ctx, handled.ID, officer.ID); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	fixtures.CreateReport(ctx, ana, "routine", time.Now())

	got, err := store.CriticalPending(ctx)
	if err != nil {
		t.Fatalf("CriticalPending failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != critical.ID {
		t.Errorf("CriticalPending = %v", titles(got))
	}
}

// Stored createdAt values can be BSON dates, epoch millis, or
// RFC 3339 strings depending on which client wrote them. All must
// sort by actual instant.
func TestStore_All_MixedTimestampRepresentations(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coll := db.Collection("security_reports")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	raw := []bson.M{
		{"title": "oldest", "createdAt": base},
		{"title": "middle", "createdAt": base.Add(time.Hour).UnixMilli()},
		{"title": "newest", "createdAt": base.Add(2 * time.Hour).Format(time.RFC3339)},
	}
	for _, doc := range raw {
		doc["userId"] = primitive.NewObjectID()
		doc["userEmail"] = "x@example.com"
		doc["userName"] = "X"
		doc["description"] = "d"
		doc["category"] = "other"
		doc["priority"] = "low"
		doc["status"] = "pending"
		doc["location"] = bson.M{"latitude": 0.0, "longitude": 0.0}
		doc["updatedAt"] = base
		if _, err := coll.InsertOne(ctx, doc); err != nil {
			t.Fatalf("raw insert: %v", err)
		}
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	want := []string{"newest", "middle", "oldest"}
	if got := titles(all); len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestStore_WithAssigneeNames(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")
	officer := fixtures.CreateUser(ctx, "Benito", "benito@example.com", models.RolePoliceOfficer)

	assigned := fixtures.CreateReport(ctx, ana, "assigned", time.Now())
	if err := store.Assign(ctx, assigned.ID, officer.ID); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	fixtures.CreateReport(ctx, ana, "unassigned", time.Now())

	// Orphaned assignment: officer record deleted after assignment.
	ghostOfficer := fixtures.CreateOfficer(ctx, "Ghost", "ghost@example.com")
	orphan := fixtures.CreateReport(ctx, ana, "orphan", time.Now())
	if err := store.Assign(ctx, orphan.ID, ghostOfficer.ID); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if _, err := db.Collection("users").DeleteOne(ctx, bson.M{"_id": ghostOfficer.ID}); err != nil {
		t.Fatalf("delete officer: %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	named := store.WithAssigneeNames(ctx, all)

	byTitle := make(map[string]reportstore.AssignedReport)
	for _, ar := range named {
		byTitle[ar.Title] = ar
	}
	if got := byTitle["assigned"].AssignedToName; got != "Benito" {
		t.Errorf("assigned name = %q", got)
	}
	if got := byTitle["unassigned"].AssignedToName; got != "" {
		t.Errorf("unassigned name = %q, want empty", got)
	}
	if got := byTitle["orphan"].AssignedToName; got != reportstore.UnknownOfficer {
		t.Errorf("orphan name = %q, want placeholder", got)
	}
}

func TestStore_Statistics_EmptySet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("total = %d", stats.Total)
	}
	for _, s := range models.Statuses() {
		if n, ok := stats.ByStatus[s]; !ok || n != 0 {
			t.Errorf("status bucket %q = %d, %v; want 0, present", s, n, ok)
		}
	}
	for _, p := range models.Priorities() {
		if n, ok := stats.ByPriority[p]; !ok || n != 0 {
			t.Errorf("priority bucket %q = %d, %v; want 0, present", p, n, ok)
		}
	}
	for _, c := range models.Categories() {
		if n, ok := stats.ByCategory[c]; !ok || n != 0 {
			t.Errorf("category bucket %q = %d, %v; want 0, present", c, n, ok)
		}
	}
}

func TestStore_Statistics_Counts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")

	r := validReport(ana)
	r.Category = models.CategoryTheft
	r.Priority = models.PriorityHigh
	if _, err := store.Create(ctx, r); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	r = validReport(ana)
	r.Category = models.CategoryTheft
	r.Priority = models.PriorityLow
	if _, err := store.Create(ctx, r); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
	if stats.ByCategory[models.CategoryTheft] != 2 {
		t.Errorf("theft = %d, want 2", stats.ByCategory[models.CategoryTheft])
	}
	if stats.ByCategory[models.CategoryViolence] != 0 {
		t.Errorf("violence = %d, want 0", stats.ByCategory[models.CategoryViolence])
	}
	if stats.ByStatus[models.StatusPending] != 2 {
		t.Errorf("pending = %d, want 2", stats.ByStatus[models.StatusPending])
	}
	if stats.ByPriority[models.PriorityHigh] != 1 {
		t.Errorf("high = %d, want 1", stats.ByPriority[models.PriorityHigh])
	}
}

func titles(reports []models.SecurityReport) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.Title
	}
	return out
}
