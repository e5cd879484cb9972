package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/models"
)

func seedEntries(t *testing.T, f *fixture, org uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f.recorder.Record(context.Background(), Event{
			ActorID:    "seed",
			Action:     ActionClientUpdate,
			EntityType: models.EntityClient,
			EntityID:   uuid.NewString(),
			Details:    map[string]int{"n": i},
			OrgID:      &org,
		})
	}
}

func TestExport_Formats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	org := uuid.New()
	seedEntries(t, f, org, 3)
	admin := f.user(t, models.RoleAdmin, &org)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := f.recorder.Export(ctx, admin.ExternalID, Query{}, ExportOptions{Format: ExportFormatJSON}, &buf)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		var entries []*models.AuditEntry
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
		require.Len(t, entries, 3)
		for _, e := range entries {
			require.True(t, Verify(e))
		}
	})

	t.Run("ndjson", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := f.recorder.Export(ctx, admin.ExternalID, Query{}, ExportOptions{Format: ExportFormatNDJSON}, &buf)
		require.NoError(t, err)

		lines := 0
		sc := bufio.NewScanner(&buf)
		for sc.Scan() {
			var e models.AuditEntry
			require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
			lines++
		}
		require.Equal(t, 3, lines)
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := f.recorder.Export(ctx, admin.ExternalID, Query{}, ExportOptions{Format: ExportFormatCSV}, &buf)
		require.NoError(t, err)

		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 4)
		require.Equal(t, csvHeader, records[0])
		require.Equal(t, org.String(), records[1][6])
	})

	t.Run("zstd", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := f.recorder.Export(ctx, admin.ExternalID, Query{}, ExportOptions{Format: ExportFormatNDJSON, Compress: true}, &buf)
		require.NoError(t, err)

		dec, err := zstd.NewReader(&buf)
		require.NoError(t, err)
		defer dec.Close()

		sc := bufio.NewScanner(dec)
		lines := 0
		for sc.Scan() {
			lines++
		}
		require.NoError(t, sc.Err())
		require.Equal(t, 3, lines)
	})

	t.Run("empty json is an array", func(t *testing.T) {
		var buf bytes.Buffer
		other := uuid.New()
		super := f.user(t, models.RoleSuperadmin, nil)
		n, err := f.recorder.Export(ctx, super.ExternalID, Query{OrgID: &other}, ExportOptions{}, &buf)
		require.NoError(t, err)
		require.Zero(t, n)
		require.JSONEq(t, `[]`, buf.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := f.recorder.Export(ctx, admin.ExternalID, Query{}, ExportOptions{Format: "xml"}, &bytes.Buffer{})
		require.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestExport_PagesPastMaxLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	org := uuid.New()
	seedEntries(t, f, org, 1005)
	super := f.user(t, models.RoleSuperadmin, nil)

	var buf bytes.Buffer
	n, err := f.recorder.Export(ctx, super.ExternalID, Query{}, ExportOptions{Format: ExportFormatNDJSON}, &buf)
	require.NoError(t, err)
	require.Equal(t, 1005, n)
}

func TestExport_RequiresExportPermission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	org := uuid.New()
	leader := f.user(t, models.RoleTeamLeader, &org)

	_, err := f.recorder.Export(ctx, leader.ExternalID, Query{}, ExportOptions{}, &bytes.Buffer{})
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))
}
