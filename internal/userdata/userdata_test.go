package userdata

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrylist/backend/internal/storage"
	"github.com/berrylist/backend/internal/storage/models"
	"github.com/berrylist/backend/internal/store"
	syncer "github.com/berrylist/backend/internal/sync"
)

func newTestService(t *testing.T) (*Service, *store.Store, *syncer.Queue) {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.RunMigrations(db))

	eventStore := store.New(storage.NewEventCacheRepository(db))
	settings := storage.NewSettingsRepository(db)
	queue := syncer.NewQueue(storage.NewQueueRepository(db))
	return NewService(eventStore, settings, queue), eventStore, queue
}

func validDoc() models.UserData {
	return models.UserData{
		UserID:  "u1",
		Profile: &models.Profile{DisplayName: "Berry", Email: "berry@example.com"},
		Events: []models.Event{
			{ID: "a", Title: "Dentist", Date: "2026-03-10", Time: "14:00"},
		},
		Settings: map[string]string{models.SettingTheme: "dark"},
		Metadata: &models.ExportMetadata{Version: models.ExportVersion, ExportedAt: "2026-03-01T00:00:00Z", TotalEvents: 1},
	}
}

func encode(t *testing.T, doc models.UserData) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestExportRoundTrip(t *testing.T) {
	svc, eventStore, _ := newTestService(t)
	ctx := context.Background()

	eventStore.Add(ctx, models.Event{ID: "a", Title: "Dentist", Date: "2026-03-10", Time: "14:00"})

	var buf bytes.Buffer
	require.NoError(t, svc.WriteExport(ctx, &buf, "u1", models.Profile{DisplayName: "Berry"}))

	var doc models.UserData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "u1", doc.UserID)
	require.NotNil(t, doc.Profile)
	assert.Equal(t, "Berry", doc.Profile.DisplayName)
	require.Len(t, doc.Events, 1)
	require.NotNil(t, doc.Metadata)
	assert.Equal(t, models.ExportVersion, doc.Metadata.Version)
	assert.Equal(t, 1, doc.Metadata.TotalEvents)
	assert.NotEmpty(t, doc.Metadata.ExportedAt)

	// An export must import cleanly
	svc2, store2, _ := newTestService(t)
	result, err := svc2.Import(ctx, bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.EventsImported)
	assert.Equal(t, 1, store2.Len())
}

func TestImportRejectsMissingSections(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string]func(*models.UserData){
		"userId":   func(d *models.UserData) { d.UserID = "" },
		"profile":  func(d *models.UserData) { d.Profile = nil },
		"events":   func(d *models.UserData) { d.Events = nil },
		"settings": func(d *models.UserData) { d.Settings = nil },
		"metadata": func(d *models.UserData) { d.Metadata = nil },
	}

	for section, strip := range cases {
		doc := validDoc()
		strip(&doc)
		_, err := svc.Import(ctx, encode(t, doc), false)
		require.ErrorIs(t, err, ErrMalformedImport, "missing %s must be rejected", section)
		assert.Contains(t, err.Error(), section)
	}
}

func TestImportRejectsNonJSON(t *testing.T) {
	svc, eventStore, _ := newTestService(t)

	_, err := svc.Import(context.Background(), strings.NewReader("not json at all"), false)
	require.ErrorIs(t, err, ErrMalformedImport)
	assert.Zero(t, eventStore.Len(), "a rejected import must not touch the store")
}

func TestImportMergesByDefault(t *testing.T) {
	svc, eventStore, queue := newTestService(t)
	ctx := context.Background()

	eventStore.Add(ctx, models.Event{ID: "existing", Title: "Keep me", Date: "2026-03-01"})

	result, err := svc.Import(ctx, encode(t, validDoc()), false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.EventsImported)
	assert.Equal(t, 2, eventStore.Len())

	// Imported events get a fresh stamp and are staged for the next sync
	got, ok := eventStore.Get("a")
	require.True(t, ok)
	assert.NotEmpty(t, got.UpdatedAt)

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OpCreate, pending[0].Op)
	assert.Equal(t, "a", pending[0].TargetID())
}

func TestImportReplaceDiscardsExisting(t *testing.T) {
	svc, eventStore, _ := newTestService(t)
	ctx := context.Background()

	eventStore.Add(ctx, models.Event{ID: "existing", Title: "Drop me", Date: "2026-03-01"})

	_, err := svc.Import(ctx, encode(t, validDoc()), true)
	require.NoError(t, err)

	assert.Equal(t, 1, eventStore.Len())
	_, ok := eventStore.Get("existing")
	assert.False(t, ok)
}

func TestImportStagingFailureLeavesStoreUntouched(t *testing.T) {
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, storage.RunMigrations(db))

	eventStore := store.New(storage.NewEventCacheRepository(db))
	svc := NewService(eventStore, storage.NewSettingsRepository(db), syncer.NewQueue(storage.NewQueueRepository(db)))
	ctx := context.Background()

	eventStore.Add(ctx, models.Event{ID: "existing", Title: "Keep me", Date: "2026-03-01"})

	// Closing the database makes queue staging fail
	require.NoError(t, db.Close())

	_, err = svc.Import(ctx, encode(t, validDoc()), true)
	require.ErrorIs(t, err, syncer.ErrStorageFull)

	assert.Equal(t, 1, eventStore.Len(), "a failed staging must not replace the event set")
	_, ok := eventStore.Get("existing")
	assert.True(t, ok)
}

func TestImportGeneratesMissingIDs(t *testing.T) {
	svc, eventStore, _ := newTestService(t)
	ctx := context.Background()

	doc := validDoc()
	doc.Events = append(doc.Events, models.Event{Title: "No id", Date: "2026-03-11"})

	result, err := svc.Import(ctx, encode(t, doc), false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.EventsImported)

	for _, e := range eventStore.Events() {
		assert.NotEmpty(t, e.ID)
	}
}

func TestImportAppliesSettings(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	doc := validDoc()
	doc.Settings[models.SettingWeekStart] = "sunday"
	// Device-local sync bookkeeping must not be importable
	doc.Settings[models.SettingLastSyncTime] = "2020-01-01T00:00:00Z"

	result, err := svc.Import(ctx, encode(t, doc), false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SettingsImported)
}
