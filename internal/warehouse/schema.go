package warehouse

// Credential tables.
const (
	OAuth2CredentialsTable = "oauth2_credentials"
	CredentialsTable       = "credentials"
)

// RawTables lists every raw landing table the sync jobs write to. The
// Postgres migrations and the SQLite schema both create exactly these.
var RawTables = []string{
	"raw_fitbit__sleep",
	"raw_fitbit__activity",
	"raw_fitbit__heart_rate",
	"raw_fitbit__hrv",
	"raw_fitbit__spo2",
	"raw_fitbit__breathing_rate",
	"raw_fitbit__cardio_score",
	"raw_fitbit__temperature_skin",
	"raw_tanita_health_planet__body_composition",
	"raw_tanita_health_planet__blood_pressure",
	"raw_zaim__category",
	"raw_zaim__genre",
	"raw_zaim__account",
	"raw_zaim__money",
	"raw_toggl_track__projects",
	"raw_toggl_track__clients",
	"raw_toggl_track__tags",
	"raw_toggl_track__me",
	"raw_toggl_track__workspaces",
	"raw_toggl_track__users",
	"raw_toggl_track__groups",
	"raw_toggl_track__time_entries",
	"raw_toggl_track__time_entries_report",
}

// IsRawTable reports whether name is a known landing table.
func IsRawTable(name string) bool {
	for _, t := range RawTables {
		if t == name {
			return true
		}
	}
	return false
}
