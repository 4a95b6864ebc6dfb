package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.trace/internal/fsutil"
)

func TestRecordingFileExportImport(t *testing.T) {
	f := newFixture(t, true)
	dir := t.TempDir()
	f.server.SetRecordingsDir(dir, fsutil.OSFileSystem{})

	f.post(t, "/api/session/start", "").Body.Close()
	f.runTicks(t, 8)
	f.post(t, "/api/session/stop", "").Body.Close()

	resp := f.post(t, "/api/recordings", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	saved := decode[struct {
		RecordingID string `json:"recording_id"`
	}](t, resp)

	// Export to disk.
	resp = f.post(t, "/api/recordings/"+saved.RecordingID+"/export", `{"filename": "demo-run.json"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	_, err := os.Stat(filepath.Join(dir, "demo-run.json"))
	require.NoError(t, err)

	// The file shows up in the listing.
	resp = f.get(t, "/api/recordings/files")
	files := decode[struct {
		Files []string `json:"files"`
	}](t, resp)
	require.Equal(t, []string{"demo-run.json"}, files.Files)

	// Import it back as a fresh recording.
	resp = f.post(t, "/api/recordings/import", `{"filename": "demo-run.json"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	imported := decode[struct {
		RecordingID string `json:"recording_id"`
		SampleCount int    `json:"sample_count"`
	}](t, resp)
	require.NotEqual(t, saved.RecordingID, imported.RecordingID)
	require.Equal(t, 8, imported.SampleCount)

	list, err := f.server.db.ListRecordings()
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestRecordingFileTraversalRejected(t *testing.T) {
	f := newFixture(t, true)
	dir := t.TempDir()
	f.server.SetRecordingsDir(dir, fsutil.OSFileSystem{})

	resp := f.post(t, "/api/recordings/import", `{"filename": "../../etc/passwd"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.post(t, "/api/recordings/abc/export", `{"filename": "../escape.json"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRecordingImportMissingFile(t *testing.T) {
	f := newFixture(t, true)
	dir := t.TempDir()
	f.server.SetRecordingsDir(dir, fsutil.OSFileSystem{})

	resp := f.post(t, "/api/recordings/import", `{"filename": "absent.json"}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
