package database

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"chemflow/internal/core"
)

// testDB connects to the database named by TEST_DATABASE_URL, runs
// migrations, and truncates all tables. Tests are skipped when the
// variable is unset.
func testDB(t *testing.T) *Repository {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping database tests")
	}

	ctx := context.Background()
	db, err := New(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if _, err := db.Pool.Exec(ctx, "TRUNCATE equipment_records, datasets, auth_tokens, users CASCADE"); err != nil {
		t.Fatalf("failed to truncate: %v", err)
	}

	return NewRepository(db)
}

func newTestUser(t *testing.T, repo *Repository, username string) *User {
	t.Helper()
	user := &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func newTestDataset(owner *uuid.UUID, uploadedAt time.Time, records []core.EquipmentRecord) *Dataset {
	summary, _ := core.Aggregate(records)
	return &Dataset{
		ID:         uuid.New(),
		OwnerID:    owner,
		Filename:   "plant.csv",
		UploadedAt: uploadedAt,
		Summary:    *summary,
		Records:    records,
	}
}

var sampleRecords = []core.EquipmentRecord{
	{Name: "Pump1", Type: "Pump", Flowrate: 10, Pressure: 2, Temperature: 25},
	{Name: "Valve1", Type: "Valve", Flowrate: 5, Pressure: 1, Temperature: 20},
	{Name: "Pump2", Type: "Pump", Flowrate: 12.5, Pressure: 2.2, Temperature: 26.1},
}

func TestDatasetRoundTrip(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()
	owner := newTestUser(t, repo, "alice")

	ds := newTestDataset(&owner.ID, time.Now().UTC(), sampleRecords)
	if err := repo.CreateDataset(ctx, ds); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.GetDataset(ctx, ds.ID, &owner.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if !reflect.DeepEqual(got.Records, ds.Records) {
		t.Errorf("records not preserved in order:\ngot  %+v\nwant %+v", got.Records, ds.Records)
	}
	if !reflect.DeepEqual(got.Summary, ds.Summary) {
		t.Errorf("summary not preserved:\ngot  %+v\nwant %+v", got.Summary, ds.Summary)
	}
	if got.Filename != "plant.csv" {
		t.Errorf("filename not preserved: %q", got.Filename)
	}
}

func TestDatasetDelete(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()
	owner := newTestUser(t, repo, "alice")

	ds := newTestDataset(&owner.ID, time.Now().UTC(), sampleRecords)
	if err := repo.CreateDataset(ctx, ds); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.DeleteDataset(ctx, ds.ID, &owner.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := repo.GetDataset(ctx, ds.ID, &owner.ID); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("expected ErrDatasetNotFound after delete, got %v", err)
	}

	// Second delete fails the same way, not with a crash.
	if err := repo.DeleteDataset(ctx, ds.ID, &owner.ID); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("expected ErrDatasetNotFound on double delete, got %v", err)
	}
}

func TestGetDatasetRejectsTornRecords(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()
	owner := newTestUser(t, repo, "alice")

	ds := newTestDataset(&owner.ID, time.Now().UTC(), sampleRecords)
	if err := repo.CreateDataset(ctx, ds); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Strip the records out from under the row, the state a reader
	// would hit mid-way through a concurrent cascade delete.
	if _, err := repo.db.Pool.Exec(ctx,
		"DELETE FROM equipment_records WHERE dataset_id = $1", ds.ID); err != nil {
		t.Fatalf("failed to strip records: %v", err)
	}

	if _, err := repo.GetDataset(ctx, ds.ID, &owner.ID); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("expected ErrDatasetNotFound for dataset missing its records, got %v", err)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()
	alice := newTestUser(t, repo, "alice")
	bob := newTestUser(t, repo, "bob")

	ds := newTestDataset(&alice.ID, time.Now().UTC(), sampleRecords)
	if err := repo.CreateDataset(ctx, ds); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := repo.GetDataset(ctx, ds.ID, &bob.ID); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("expected foreign get to report ErrDatasetNotFound, got %v", err)
	}
	if err := repo.DeleteDataset(ctx, ds.ID, &bob.ID); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("expected foreign delete to report ErrDatasetNotFound, got %v", err)
	}

	// Owner still sees it.
	if _, err := repo.GetDataset(ctx, ds.ID, &alice.ID); err != nil {
		t.Errorf("owner get failed after foreign delete attempt: %v", err)
	}
}

func TestListDatasets(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()
	owner := newTestUser(t, repo, "alice")

	t.Run("empty list for fresh user", func(t *testing.T) {
		list, err := repo.ListDatasets(ctx, &owner.ID, 5)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if list == nil || len(list) != 0 {
			t.Errorf("expected empty non-nil list, got %v", list)
		}
	})

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 7; i++ {
		ds := newTestDataset(&owner.ID, base.Add(time.Duration(i)*time.Hour), sampleRecords)
		if err := repo.CreateDataset(ctx, ds); err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
		ids = append(ids, ds.ID)
	}

	t.Run("most recent first with limit", func(t *testing.T) {
		list, err := repo.ListDatasets(ctx, &owner.ID, 5)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(list) != 5 {
			t.Fatalf("expected 5 datasets, got %d", len(list))
		}
		if list[0].ID != ids[6] || list[4].ID != ids[2] {
			t.Errorf("unexpected ordering: first %s, last %s", list[0].ID, list[4].ID)
		}
		if list[0].Records != nil {
			t.Error("list must not include records")
		}
	})

	t.Run("prune keeps the newest", func(t *testing.T) {
		pruned, err := repo.PruneDatasets(ctx, &owner.ID, 5)
		if err != nil {
			t.Fatalf("prune failed: %v", err)
		}
		if len(pruned) != 2 {
			t.Fatalf("expected 2 pruned, got %d", len(pruned))
		}

		n, err := repo.CountDatasets(ctx, &owner.ID)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != 5 {
			t.Errorf("expected 5 remaining, got %d", n)
		}

		// The two oldest are the ones gone.
		for _, old := range ids[:2] {
			if _, err := repo.GetDataset(ctx, old, &owner.ID); !errors.Is(err, ErrDatasetNotFound) {
				t.Errorf("expected oldest dataset %s pruned, got %v", old, err)
			}
		}
	})
}

func TestUsersAndTokens(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()

	user := newTestUser(t, repo, "alice")

	t.Run("duplicate username rejected", func(t *testing.T) {
		dup := &User{ID: uuid.New(), Username: "alice", PasswordHash: "x", CreatedAt: time.Now().UTC()}
		if err := repo.CreateUser(ctx, dup); !errors.Is(err, ErrUsernameExists) {
			t.Errorf("expected ErrUsernameExists, got %v", err)
		}
	})

	t.Run("token resolves to user", func(t *testing.T) {
		if err := repo.CreateToken(ctx, "deadbeef", user.ID); err != nil {
			t.Fatalf("create token failed: %v", err)
		}
		got, err := repo.GetUserByToken(ctx, "deadbeef")
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("expected user %s, got %s", user.ID, got.ID)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		if _, err := repo.GetUserByToken(ctx, "nope"); !errors.Is(err, ErrTokenNotFound) {
			t.Errorf("expected ErrTokenNotFound, got %v", err)
		}
	})
}

func TestStats(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()
	owner := newTestUser(t, repo, "alice")

	for i := 0; i < 2; i++ {
		ds := newTestDataset(&owner.ID, time.Now().UTC().Add(time.Duration(i)*time.Minute), sampleRecords)
		ds.ArchiveSize = 100
		if err := repo.CreateDataset(ctx, ds); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := repo.IncrementPDFExportCount(ctx, ds.ID); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}

	stats, err := repo.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	want := Stats{TotalDatasets: 2, TotalRecords: 6, TotalPDFExports: 2, ArchiveBytes: 200}
	if *stats != want {
		t.Errorf("expected %+v, got %+v", want, *stats)
	}
}
