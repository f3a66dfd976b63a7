package store

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quadra/internal/models"
)

const legacyAgenda = `# agenda antiga
A;2024-06-10;17:30;Ana Silva;5511988880000;
A;2024-06-10;17:30;Bruno Souza;5511977770000;Carla Mendes

B;2024-06-12;07:00;Davi Rocha;;
A;2024-06-10;17:30;Ana Silva;5511988880000;
`

func TestImportLegacySkipsDuplicates(t *testing.T) {
	s := newSQLiteStore(t)
	logger := zerolog.New(io.Discard)

	result, err := ImportLegacy(context.Background(), s, strings.NewReader(legacyAgenda), &logger)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 1, result.Skipped, "repeated Ana Silva line is skipped")

	count, err := s.Count(context.Background(), models.UnitA, "2024-06-10", "17:30")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Re-running the same file imports nothing new.
	result, err = ImportLegacy(context.Background(), s, strings.NewReader(legacyAgenda), &logger)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 4, result.Skipped)
}

func TestImportLegacyMalformed(t *testing.T) {
	s := newSQLiteStore(t)
	logger := zerolog.New(io.Discard)

	cases := []struct {
		name string
		line string
	}{
		{"too few fields", "A;2024-06-10;17:30"},
		{"bad unit", "C;2024-06-10;17:30;Ana Silva"},
		{"bad date", "A;10/06/2024;17:30;Ana Silva"},
		{"bad time", "A;2024-06-10;25:99;Ana Silva"},
		{"missing name", "A;2024-06-10;17:30;"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ImportLegacy(context.Background(), s, strings.NewReader(tc.line+"\n"), &logger)
			assert.Error(t, err)
		})
	}
}
