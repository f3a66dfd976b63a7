package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"quadra/internal/models"
)

// ImportResult summarizes a legacy import run.
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportLegacy reads the flat agenda format the academy kept before
// this service existed, one record per line:
//
//	unit;date;time;name;phone;companion
//
// Blank lines and lines starting with '#' are ignored. Records that
// collide with an existing (unit, date, time, name) tuple are skipped,
// not fatal, so a partially imported agenda can be re-run.
func ImportLegacy(ctx context.Context, s Store, r io.Reader, logger *zerolog.Logger) (ImportResult, error) {
	var result ImportResult

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		booking, err := parseLegacyLine(line)
		if err != nil {
			return result, fmt.Errorf("line %d: %w", lineNo, err)
		}

		if err := s.Insert(ctx, booking); err != nil {
			if errors.Is(err, ErrDuplicate) {
				result.Skipped++
				logger.Debug().Int("line", lineNo).Str("name", booking.Name).Msg("duplicate skipped")
				continue
			}
			return result, fmt.Errorf("line %d: %w", lineNo, err)
		}
		result.Imported++
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read legacy agenda: %w", err)
	}
	return result, nil
}

func parseLegacyLine(line string) (*models.Booking, error) {
	fields := strings.Split(line, ";")
	if len(fields) < 4 {
		return nil, fmt.Errorf("malformed record: %q", line)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	unit, err := models.ParseUnit(fields[0])
	if err != nil {
		return nil, err
	}
	if _, err := models.ParseDate(fields[1]); err != nil {
		return nil, fmt.Errorf("bad date %q: %w", fields[1], err)
	}
	if !models.ValidTime(fields[2]) {
		return nil, fmt.Errorf("bad time %q", fields[2])
	}
	if fields[3] == "" {
		return nil, fmt.Errorf("missing name: %q", line)
	}

	b := &models.Booking{
		Unit: unit,
		Date: fields[1],
		Time: fields[2],
		Name: fields[3],
	}
	if len(fields) > 4 {
		b.Phone = fields[4]
	}
	if len(fields) > 5 {
		b.Companion = fields[5]
	}
	return b, nil
}
