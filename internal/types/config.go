package types

type RunMode string

const (
	// ModeLocal runs the API server and the audit consumer in one process
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server
	ModeAPI RunMode = "api"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// BackendType selects the persistence implementation
type BackendType string

const (
	BackendPostgres BackendType = "postgres"
	BackendSupabase BackendType = "supabase"
)

// AuthProvider selects how bearer tokens are validated
type AuthProvider string

const (
	AuthProviderSupabase AuthProvider = "supabase"
	AuthProviderLocal    AuthProvider = "local"
)
