package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/podology-booking/internal/analytics"
)

// mockS3Client records PutObject/GetObject calls for testing.
type mockS3Client struct {
	putCalls []putCall
	objects  map[string][]byte // key -> body
	putErr   error
}

type putCall struct {
	bucket string
	key    string
	body   []byte
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	body, _ := io.ReadAll(input.Body)
	m.putCalls = append(m.putCalls, putCall{
		bucket: *input.Bucket,
		key:    *input.Key,
		body:   body,
	})
	m.objects[*input.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &notFoundError{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

type notFoundError struct{}

func (e *notFoundError) Error() string { return "NoSuchKey: key not found" }

func snapshot(generated time.Time) *analytics.KPIs {
	return &analytics.KPIs{
		Period:            analytics.Period{Start: generated.AddDate(0, -1, 0), End: generated},
		GeneratedAt:       generated,
		TotalPatients:     1,
		TotalAppointments: 3,
		Patients: []analytics.PatientSummary{
			{PatientID: "ana gomez|+5491155556666", DisplayName: "Ana Gómez", Visits: 3},
		},
		TopPatients: []analytics.PatientSummary{
			{PatientID: "ana gomez|+5491155556666", DisplayName: "Ana Gómez", Visits: 3},
		},
	}
}

func TestStore_ArchiveSnapshot(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)

	now := time.Date(2026, 2, 12, 15, 0, 0, 0, time.UTC)
	key, err := store.ArchiveSnapshot(context.Background(), snapshot(now), "v1")
	require.NoError(t, err)
	assert.Equal(t, "kpis/v1/2026/02/12/20260212T150000Z.json", key)

	// snapshot + manifest
	require.Len(t, mock.putCalls, 2)
	assert.Equal(t, "test-bucket", mock.putCalls[0].bucket)

	var decoded analytics.KPIs
	require.NoError(t, json.Unmarshal(mock.putCalls[0].body, &decoded))
	assert.Equal(t, 3, decoded.TotalAppointments)
	require.Len(t, decoded.Patients, 1)
	assert.Equal(t, "A. G.", decoded.Patients[0].DisplayName)
	assert.NotContains(t, string(mock.putCalls[0].body), "5491155556666")

	assert.Equal(t, "kpis/v1/manifests/2026-02.jsonl", mock.putCalls[1].key)
	var entry ManifestEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(mock.putCalls[1].body), &entry))
	assert.Equal(t, key, entry.S3Key)
	assert.Equal(t, "v1", entry.RuleVersion)
}

func TestStore_Disabled(t *testing.T) {
	store := NewStore(nil, "", nil)
	assert.False(t, store.Enabled())

	key, err := store.ArchiveSnapshot(context.Background(), &analytics.KPIs{}, "v1")
	assert.NoError(t, err) // no-op, no error
	assert.Empty(t, key)
}

func TestStore_ManifestAppend(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)
	month := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendManifest(context.Background(), ManifestEntry{S3Key: "a", GeneratedAt: month}))
	require.NoError(t, store.AppendManifest(context.Background(), ManifestEntry{S3Key: "b", GeneratedAt: month.Add(time.Hour)}))

	entries, err := store.Manifest(context.Background(), month)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[1].S3Key)

	empty, err := store.Manifest(context.Background(), month.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_PutFailure(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("boom")
	store := NewStore(mock, "test-bucket", nil)

	_, err := store.ArchiveSnapshot(context.Background(), snapshot(time.Now()), "v1")
	assert.Error(t, err)
}

func TestRedactSnapshot(t *testing.T) {
	orig := snapshot(time.Now())
	red := RedactSnapshot(orig)
	assert.Equal(t, "ana gomez|+5491155556666", orig.Patients[0].PatientID, "original untouched")
	assert.Equal(t, "p_"+HashPhone("ana gomez|+5491155556666")[:16], red.Patients[0].PatientID)
	assert.Equal(t, red.Patients[0].PatientID, red.TopPatients[0].PatientID)
	assert.Equal(t, "A. G.", Initials("Ana  Gómez"))
	assert.Len(t, HashPhone("+5491155556666"), 64)
}
