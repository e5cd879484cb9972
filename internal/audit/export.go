package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatNDJSON ExportFormat = "ndjson"
	ExportFormatCSV    ExportFormat = "csv"
)

// ExportOptions controls Export.
type ExportOptions struct {
	Format ExportFormat
	// Compress wraps the output in a zstd stream.
	Compress bool
}

type entryWriter interface {
	write(e *models.AuditEntry) error
	close() error
}

// Export streams every entry matching q that subjectID may see to w and returns the count.
// Limit and Offset in q are ignored.
func (r *Recorder) Export(ctx context.Context, subjectID string, q Query, opts ExportOptions, w io.Writer) (int, error) {
	filter, err := r.filter(ctx, subjectID, auth.PermExportAuditLogs, q)
	if err != nil {
		return 0, err
	}
	if opts.Format == "" {
		opts.Format = ExportFormatJSON
	}

	out := w
	var enc *zstd.Encoder
	if opts.Compress {
		enc, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return 0, fmt.Errorf("failed to create encoder: %w", err)
		}
		out = enc
	}

	ew, err := newEntryWriter(opts.Format, out)
	if err != nil {
		return 0, err
	}

	count := 0
	filter.Limit = store.MaxLimit
	filter.Offset = 0
	for {
		page, err := r.store.List(ctx, filter)
		if err != nil {
			return count, apperr.Wrap(apperr.KindInternal, err, "failed to read audit entries")
		}
		for _, e := range page {
			if err := ew.write(e); err != nil {
				return count, fmt.Errorf("failed to write audit entry: %w", err)
			}
			count++
		}
		if len(page) < filter.Limit {
			break
		}
		filter.Offset += len(page)
	}

	if err := ew.close(); err != nil {
		return count, fmt.Errorf("failed to finish export: %w", err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return count, fmt.Errorf("failed to flush encoder: %w", err)
		}
	}

	log.Info().
		Str("subject_id", subjectID).
		Str("format", string(opts.Format)).
		Bool("compressed", opts.Compress).
		Int("count", count).
		Msg("Exported audit log")

	return count, nil
}

func newEntryWriter(format ExportFormat, w io.Writer) (entryWriter, error) {
	switch format {
	case ExportFormatJSON:
		return &jsonWriter{w: w}, nil
	case ExportFormatNDJSON:
		return &ndjsonWriter{enc: json.NewEncoder(w)}, nil
	case ExportFormatCSV:
		cw := &csvWriter{w: csv.NewWriter(w)}
		if err := cw.w.Write(csvHeader); err != nil {
			return nil, fmt.Errorf("failed to write CSV header: %w", err)
		}
		return cw, nil
	default:
		return nil, apperr.Validation("unknown export format %q", format)
	}
}

// jsonWriter streams a JSON array without holding every entry in memory.
type jsonWriter struct {
	w       io.Writer
	started bool
}

func (j *jsonWriter) write(e *models.AuditEntry) error {
	prefix := ","
	if !j.started {
		prefix = "["
		j.started = true
	}
	if _, err := io.WriteString(j.w, prefix); err != nil {
		return err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = j.w.Write(b)
	return err
}

func (j *jsonWriter) close() error {
	closing := "]\n"
	if !j.started {
		closing = "[]\n"
	}
	_, err := io.WriteString(j.w, closing)
	return err
}

type ndjsonWriter struct {
	enc *json.Encoder
}

func (n *ndjsonWriter) write(e *models.AuditEntry) error {
	return n.enc.Encode(e)
}

func (n *ndjsonWriter) close() error {
	return nil
}

var csvHeader = []string{
	"ID",
	"Timestamp",
	"ActorID",
	"Action",
	"EntityType",
	"EntityID",
	"OrgID",
	"ClientIP",
	"Details",
	"Checksum",
}

type csvWriter struct {
	w *csv.Writer
}

func (c *csvWriter) write(e *models.AuditEntry) error {
	orgID := ""
	if e.OrgID != nil {
		orgID = e.OrgID.String()
	}
	return c.w.Write([]string{
		e.ID.String(),
		e.Timestamp.Format(time.RFC3339Nano),
		e.ActorID,
		e.Action,
		e.EntityType,
		e.EntityID,
		orgID,
		e.ClientIP,
		string(e.Details),
		e.Checksum,
	})
}

func (c *csvWriter) close() error {
	c.w.Flush()
	return c.w.Error()
}
