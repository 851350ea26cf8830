package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/raphaelgruber/statsports/internal/models"
)

// fileDateLayout is the date format used in artifact file names.
const fileDateLayout = "20060102"

// Artifacts names the final files of a run.
type Artifacts struct {
	SessionsJSON string
	PlayersJSON  string
	CSV          string
	Rows         int
}

// Writer produces the final artifacts of a run directory.
type Writer struct {
	Compression string
}

// baseName returns e.g. "sessions_20240301_20240303".
func baseName(prefix string, start, end time.Time) string {
	return fmt.Sprintf("%s_%s_%s", prefix, start.Format(fileDateLayout), end.Format(fileDateLayout))
}

// WriteAll writes the sessions and players snapshots and the flattened CSV
// into dir. JSON failures are returned joined with any CSV failure; a
// partially written set of artifacts still reports the files that exist.
func (w Writer) WriteAll(dir string, start, end time.Time, sessions []models.Session, players models.PlayersByDate) (Artifacts, *models.Table, error) {
	var out Artifacts
	var errs []error

	if sessions == nil {
		sessions = []models.Session{}
	}
	if players == nil {
		players = models.PlayersByDate{}
	}

	path, err := w.writeJSON(filepath.Join(dir, baseName("sessions", start, end)+".json"), sessions)
	if err != nil {
		errs = append(errs, err)
	} else {
		out.SessionsJSON = path
	}
	path, err = w.writeJSON(filepath.Join(dir, baseName("players", start, end)+".json"), players)
	if err != nil {
		errs = append(errs, err)
	} else {
		out.PlayersJSON = path
	}

	table := Flatten(sessions, players)
	path, err = w.WriteCSV(filepath.Join(dir, baseName("statsports", start, end)+".csv"), table)
	if err != nil {
		errs = append(errs, err)
	} else {
		out.CSV = path
		out.Rows = table.Len()
	}
	return out, table, errors.Join(errs...)
}

func (w Writer) writeJSON(path string, v any) (string, error) {
	return w.create(path, func(wr io.Writer) error {
		enc := json.NewEncoder(wr)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
		}
		return nil
	})
}

// WriteCSV writes table to path, appending the compression extension.
// It returns the path actually written.
func (w Writer) WriteCSV(path string, table *models.Table) (string, error) {
	return w.create(path, func(wr io.Writer) error {
		return EncodeCSV(wr, table)
	})
}

// EncodeCSV writes a header row followed by every row in column order.
func EncodeCSV(wr io.Writer, table *models.Table) error {
	cw := csv.NewWriter(wr)
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range table.Rows {
		if err := cw.Write(table.Record(row)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// create writes through the configured compressor into a temp file and
// renames it into place.
func (w Writer) create(path string, fill func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	tmp := f.Name()
	fail := func(err error) (string, error) {
		f.Close()
		_ = os.Remove(tmp)
		return "", err
	}

	cw, ext, err := NewWriter(f, w.Compression)
	if err != nil {
		return fail(err)
	}
	if err := fill(cw); err != nil {
		return fail(err)
	}
	if err := cw.Close(); err != nil {
		return fail(fmt.Errorf("flush %s: %w", filepath.Base(path), err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}

	final := path + ext
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename %s: %w", filepath.Base(final), err)
	}
	return final, nil
}

// ReadCSV loads a possibly compressed CSV file into a table. Short rows are
// padded with empty values.
func ReadCSV(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r, err := NewReader(f, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer r.Close()
	return DecodeCSV(r)
}

// DecodeCSV parses a CSV stream whose first record is the header.
func DecodeCSV(r io.Reader) (*models.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &models.Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	table := &models.Table{}
	for _, c := range header {
		table.AddColumn(c)
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, c := range header {
			if i < len(rec) {
				row[c] = rec[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
