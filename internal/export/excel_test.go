package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"quadra/internal/models"
)

func TestWriteWorkbook(t *testing.T) {
	created := time.Date(2024, 6, 5, 14, 30, 0, 0, time.UTC)
	sheets := []Sheet{
		{
			Name: "Unidade Centro",
			Bookings: []models.Booking{
				{
					ID: 1, Unit: models.UnitA, Date: "2024-06-10", Time: "17:30",
					Name: "Ana Silva", Phone: "5511999990001",
					Status: models.StatusConfirmed, CreatedAt: created,
				},
				{
					ID: 2, Unit: models.UnitA, Date: "2024-06-10", Time: "17:30",
					Name: "Bruno Souza", Phone: "5511999990001", Companion: "Ana Silva",
					Status: models.StatusConfirmed, CreatedAt: created,
				},
			},
		},
		{Name: "Unidade Orla"},
	}

	path := filepath.Join(t.TempDir(), "reservas.xlsx")
	require.NoError(t, WriteWorkbook(path, sheets))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Unidade Centro", "Unidade Orla"}, f.GetSheetList())

	header, err := f.GetRows("Unidade Orla")
	require.NoError(t, err)
	require.NotEmpty(t, header)
	assert.Equal(t, []string{"ID", "Data", "Horário", "Nome", "Telefone", "Acompanhante", "Status", "Criado em"}, header[0])

	rows, err := f.GetRows("Unidade Centro")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Ana Silva", rows[1][3])
	assert.Equal(t, "Bruno Souza", rows[2][3])
	assert.Equal(t, "Ana Silva", rows[2][5])
	assert.Equal(t, "confirmed", rows[1][6])
	assert.Equal(t, "2024-06-05 14:30", rows[1][7])
}

func TestWriteWorkbookTruncatesLongSheetName(t *testing.T) {
	long := "Unidade Experimental de Treinamento Avançado"
	path := filepath.Join(t.TempDir(), "reservas.xlsx")
	require.NoError(t, WriteWorkbook(path, []Sheet{{Name: long}}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	names := f.GetSheetList()
	require.Len(t, names, 1)
	assert.Equal(t, long[:31], names[0])
}
