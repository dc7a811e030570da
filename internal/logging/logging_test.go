package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		service string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "indiamaplogs",
			service: "indiamap",
			want:    filepath.Join("indiamaplogs", "indiamap.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./indiamaplogs",
			service: "indiamap",
			want:    filepath.Join(".", "indiamaplogs", "indiamap.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "indiamap"),
			service: "access",
			want:    filepath.Join("/var", "log", "indiamap", "access.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.service, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenLogFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("/logs", "nested", "indiamap.log")

	f, err := OpenLogFile(fs, path)
	require.NoError(t, err)
	_, err = f.WriteString("first\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = OpenLogFile(fs, path)
	require.NoError(t, err)
	_, err = f.WriteString("second\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data), "existing file is appended to")
}
