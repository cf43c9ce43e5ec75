package scanner

import (
	"testing"

	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIdentifier(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare code", "ABC123", "ABC123"},
		{"trims whitespace", "  ABC123\n", "ABC123"},
		{"tracking url", "https://app.example/track/XYZ999", "XYZ999"},
		{"tracking url with trailing slash", "https://app.example/track/XYZ999/", "XYZ999"},
		{"tracking url with query", "https://app.example/track/XYZ999?src=label", "XYZ999"},
		{"relative tracking path", "/track/XYZ999", "XYZ999"},
		{"json id", `{"id":"0b7c2f0e-8d43-4a4f-9d1e-4f3f2b7a9c10"}`, "0b7c2f0e-8d43-4a4f-9d1e-4f3f2b7a9c10"},
		{"json short code", `{"short_code":"PK7QX2M"}`, "PK7QX2M"},
		{"json camel case", `{"shortCode":"PK7QX2M"}`, "PK7QX2M"},
		{"json prefers id", `{"code":"OTHER","id":"PKMAIN"}`, "PKMAIN"},
		{"json without id field", `{"name":"box"}`, `{"name":"box"}`},
		{"case is preserved", "abc123", "abc123"},
		{"url without track segment", "https://app.example/packages/XYZ999", "https://app.example/packages/XYZ999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractIdentifier(tt.raw, 3, DefaultNoiseLiterals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractIdentifierRejectsNoise(t *testing.T) {
	inputs := []string{"", "  ", "ab", "null", "NULL", "undefined", "NaN", "[object Object]", `{"id":"ab"}`, "https://x/track/ab"}

	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			_, err := ExtractIdentifier(raw, 3, DefaultNoiseLiterals)
			require.Error(t, err)
			assert.True(t, ierr.IsValidation(err))
		})
	}
}

func TestExtractIdentifierTrackingURLProperty(t *testing.T) {
	origins := []string{"https://app.example", "http://localhost:5173", "https://a.b.c/sub"}
	codes := []string{"XYZ999", "PK7QX2MZA", "abc-123", "A_1"}

	for _, origin := range origins {
		for _, code := range codes {
			got, err := ExtractIdentifier(origin+"/track/"+code, 3, DefaultNoiseLiterals)
			require.NoError(t, err)
			assert.Equal(t, code, got)
		}
	}
}

func TestExtractIdentifierBulkFloor(t *testing.T) {
	got, err := ExtractIdentifier("A2", 2, DefaultNoiseLiterals)
	require.NoError(t, err)
	assert.Equal(t, "A2", got)

	_, err = ExtractIdentifier("A", 2, DefaultNoiseLiterals)
	assert.Error(t, err)
}

func TestClassifyDeviceError(t *testing.T) {
	tests := map[string]DeviceErrorKind{
		"NotAllowedError":       DeviceErrorPermissionDenied,
		"PermissionDeniedError": DeviceErrorPermissionDenied,
		"NotFoundError":         DeviceErrorNoDevice,
		"OverconstrainedError":  DeviceErrorNoDevice,
		"NotReadableError":      DeviceErrorBusy,
		"TrackStartError":       DeviceErrorBusy,
		"SecurityError":         DeviceErrorInsecureContext,
		"SomethingElse":         DeviceErrorUnknown,
	}
	messages := map[string]bool{}
	for name, kind := range tests {
		de := ClassifyDeviceError(name, "detail")
		assert.Equal(t, kind, de.Kind, name)
		messages[de.Message()] = true
	}
	// one distinct message per kind
	assert.Len(t, messages, 5)
}
