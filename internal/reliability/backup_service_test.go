package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	testhelpers "github.com/aristath/famfin/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestBackupKey_RoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 30, 22, 0, time.UTC)
	key := BackupKey(at)
	assert.Equal(t, "backups/famfin-backup-2024-03-09-143022.tar.gz", key)

	parsed, ok := ParseBackupKey(key)
	require.True(t, ok)
	assert.True(t, parsed.Equal(at))

	_, ok = ParseBackupKey("backups/famfin-backup-garbage.tar.gz")
	assert.False(t, ok)
	_, ok = ParseBackupKey("other/file.db")
	assert.False(t, ok)
}

func TestBackupService_CreateAndUpload(t *testing.T) {
	ledger := testhelpers.NewTestDB(t, "ledger")
	app := testhelpers.NewTestDB(t, "app")

	_, err := ledger.Conn().Exec(`INSERT INTO investment_transactions
		(id, user_id, ticker, transaction_type, quantity, price, fees, transaction_date, created_at)
		VALUES ('t1', 'u1', 'PETR4', 'buy', 10, 30, 0, '2024-01-02', 0)`)
	require.NoError(t, err)

	store := newMemoryStore()
	svc := NewBackupService(store, []Snapshotter{ledger, app}, t.TempDir(), 14, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 9, 3, 0, 0, 0, time.UTC) }

	info, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "backups/famfin-backup-2024-03-09-030000.tar.gz", info.Key)
	assert.Positive(t, info.SizeBytes)

	data, ok := store.objects[info.Key]
	require.True(t, ok)

	entries := readArchive(t, data)
	assert.Contains(t, entries, "ledger.db")
	assert.Contains(t, entries, "app.db")
	require.Contains(t, entries, metadataFilename)

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(entries[metadataFilename], &meta))
	require.Len(t, meta.Databases, 2)
	assert.Equal(t, "ledger", meta.Databases[0].Name)
	assert.True(t, strings.HasPrefix(meta.Databases[0].Checksum, "sha256:"))
	assert.Equal(t, int64(len(entries["ledger.db"])), meta.Databases[0].SizeBytes)
}

func TestBackupService_Rotate(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2024, 3, 30, 3, 0, 0, 0, time.UTC)
	for _, daysAgo := range []int{0, 1, 20, 30, 40} {
		store.objects[BackupKey(now.AddDate(0, 0, -daysAgo))] = []byte("x")
	}
	store.objects["backups/unrelated.txt"] = []byte("x")

	svc := NewBackupService(store, nil, t.TempDir(), 14, zerolog.Nop())
	svc.now = func() time.Time { return now }

	deleted, err := svc.Rotate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// The three newest survive even though one is past retention
	assert.ElementsMatch(t, []string{
		BackupKey(now),
		BackupKey(now.AddDate(0, 0, -1)),
		BackupKey(now.AddDate(0, 0, -20)),
		"backups/unrelated.txt",
	}, store.keys())
}

func TestBackupService_RotateKeepsMinimum(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2024, 3, 30, 3, 0, 0, 0, time.UTC)
	for _, daysAgo := range []int{100, 200, 300} {
		store.objects[BackupKey(now.AddDate(0, 0, -daysAgo))] = []byte("x")
	}

	svc := NewBackupService(store, nil, t.TempDir(), 14, zerolog.Nop())
	svc.now = func() time.Time { return now }

	deleted, err := svc.Rotate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.keys(), 3)
}

func TestBackupService_RotateDisabledAndDeleteErrors(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2024, 3, 30, 3, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		store.objects[BackupKey(now.AddDate(0, 0, -100-i))] = []byte("x")
	}

	keepAll := NewBackupService(store, nil, t.TempDir(), 0, zerolog.Nop())
	deleted, err := keepAll.Rotate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)

	store.deleteErr = errors.New("denied")
	svc := NewBackupService(store, nil, t.TempDir(), 14, zerolog.Nop())
	svc.now = func() time.Time { return now }
	deleted, err = svc.Rotate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.keys(), 6)
}

func TestBackupJob_Run(t *testing.T) {
	ledger := testhelpers.NewTestDB(t, "ledger")
	store := newMemoryStore()
	svc := NewBackupService(store, []Snapshotter{ledger}, t.TempDir(), 14, zerolog.Nop())

	job := NewBackupJob(svc, zerolog.Nop())
	assert.Equal(t, "backup", job.Name())
	require.NoError(t, job.Run())
	assert.Len(t, store.keys(), 1)
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gz.Close()

	tr := tar.NewReader(gz)
	entries := make(map[string][]byte)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[header.Name] = body
	}
	return entries
}
