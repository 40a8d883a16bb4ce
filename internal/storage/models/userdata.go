package models

// Settings keys stored in the local settings table.
const (
	SettingWeekStart    = "week_start"
	SettingTheme        = "theme"
	SettingLanguage     = "language"
	SettingLastSyncTime = "last_sync_time"
)

// ExportVersion is the schema version written into export metadata.
const ExportVersion = "1.0.0"

// Profile holds the account fields written once at initialization and
// carried through export/import.
type Profile struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL"`
	CreatedAt   string `json:"createdAt,omitempty"`
	LastLoginAt string `json:"lastLoginAt,omitempty"`
}

// ExportMetadata describes an exported document.
type ExportMetadata struct {
	Version     string `json:"version"`
	ExportedAt  string `json:"exportedAt"`
	TotalEvents int    `json:"totalEvents"`
	LastSyncAt  string `json:"lastSyncAt,omitempty"`
}

// UserData is the export/import file format: a single JSON document holding
// everything needed to rebuild a user's calendar on another account.
type UserData struct {
	UserID   string            `json:"userId"`
	Profile  *Profile          `json:"profile"`
	Events   []Event           `json:"events"`
	Settings map[string]string `json:"settings"`
	Metadata *ExportMetadata   `json:"metadata"`
}
