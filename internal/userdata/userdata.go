// Package userdata implements export and import of a user's complete
// calendar as a single JSON document, for backup and account migration.
package userdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/berrylist/backend/internal/storage"
	"github.com/berrylist/backend/internal/storage/models"
	"github.com/berrylist/backend/internal/store"
	syncer "github.com/berrylist/backend/internal/sync"
)

// ErrMalformedImport marks an import document that fails structural
// validation. Handlers map it to a 400 response.
var ErrMalformedImport = errors.New("malformed import document")

// Service performs export and import against the local store. Imported
// events are staged on the sync queue so the next drain pushes them to the
// user's remote partition.
type Service struct {
	store    *store.Store
	settings *storage.SettingsRepository
	queue    *syncer.Queue
}

func NewService(eventStore *store.Store, settings *storage.SettingsRepository, queue *syncer.Queue) *Service {
	return &Service{store: eventStore, settings: settings, queue: queue}
}

// Export assembles the full backup document for the given user.
func (s *Service) Export(ctx context.Context, userID string, profile models.Profile) (models.UserData, error) {
	settings, err := s.settings.All(ctx)
	if err != nil {
		return models.UserData{}, fmt.Errorf("reading settings: %w", err)
	}
	// Sync bookkeeping is device-local, not part of the user's data.
	lastSync := settings[models.SettingLastSyncTime]
	delete(settings, models.SettingLastSyncTime)

	events := s.store.Events()

	return models.UserData{
		UserID:   userID,
		Profile:  &profile,
		Events:   events,
		Settings: settings,
		Metadata: &models.ExportMetadata{
			Version:     models.ExportVersion,
			ExportedAt:  time.Now().UTC().Format(time.RFC3339),
			TotalEvents: len(events),
			LastSyncAt:  lastSync,
		},
	}, nil
}

// WriteExport streams the export document as indented JSON.
func (s *Service) WriteExport(ctx context.Context, w io.Writer, userID string, profile models.Profile) error {
	data, err := s.Export(ctx, userID, profile)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ImportResult summarizes what an import applied.
type ImportResult struct {
	EventsImported   int `json:"eventsImported"`
	SettingsImported int `json:"settingsImported"`
}

// Import reads a backup document and applies it. With replace set, the
// current event set is discarded first; otherwise imported events are
// merged over it by last-writer-wins. Every imported event gets a fresh
// update stamp (and an id if the document lacks one) so it wins the merge
// and propagates to the remote partition.
func (s *Service) Import(ctx context.Context, r io.Reader, replace bool) (ImportResult, error) {
	var doc models.UserData
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}

	if err := validate(doc); err != nil {
		return ImportResult{}, err
	}

	now := time.Now()
	imported := make([]models.Event, 0, len(doc.Events))
	for _, event := range doc.Events {
		if event.ID == "" {
			event.ID = storage.GenerateID()
		}
		event.Type = models.NormalizeType(event.Type)
		event.Stamp(now)
		if err := event.Validate(); err != nil {
			return ImportResult{}, fmt.Errorf("%w: event %q: %v", ErrMalformedImport, event.ID, err)
		}
		imported = append(imported, event)
	}

	var merged []models.Event
	if replace {
		merged = imported
	} else {
		merged = syncer.MergeEvents(s.store.Events(), imported)
	}

	// Stage the imported events before touching the store: a queue entry
	// carries the full event payload, so a partial staging leaves the
	// current set intact and nothing half-applied.
	for i := range imported {
		event := imported[i]
		if err := s.queue.Enqueue(ctx, models.OpCreate, &event, event.ID); err != nil {
			return ImportResult{}, fmt.Errorf("staging imported event %s: %w", event.ID, err)
		}
	}
	s.store.ReplaceAll(ctx, merged)

	applied := 0
	for key, value := range doc.Settings {
		if key == models.SettingLastSyncTime {
			continue
		}
		if err := s.settings.Set(ctx, key, value); err != nil {
			return ImportResult{}, fmt.Errorf("importing setting %q: %w", key, err)
		}
		applied++
	}

	return ImportResult{EventsImported: len(imported), SettingsImported: applied}, nil
}

// validate checks the document's structure. All four sections must be
// present; a file that parses as JSON but lacks one is rejected rather
// than partially applied.
func validate(doc models.UserData) error {
	switch {
	case doc.UserID == "":
		return fmt.Errorf("%w: missing userId", ErrMalformedImport)
	case doc.Profile == nil:
		return fmt.Errorf("%w: missing profile", ErrMalformedImport)
	case doc.Events == nil:
		return fmt.Errorf("%w: missing events", ErrMalformedImport)
	case doc.Settings == nil:
		return fmt.Errorf("%w: missing settings", ErrMalformedImport)
	case doc.Metadata == nil:
		return fmt.Errorf("%w: missing metadata", ErrMalformedImport)
	}
	return nil
}
