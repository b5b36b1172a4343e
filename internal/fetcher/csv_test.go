package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "a,b,c\n1,2,3\n4,5,6\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "b", "c"}, rows[0])
	assert.Equal(t, []string{"4", "5", "6"}, rows[2])
}

func TestStreamCSV_PipeDelimited(t *testing.T) {
	input := "a|b|c\n1|2|3\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '|',
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "2", "3"}, rows[1])
}

func TestStreamCSV_Charset(t *testing.T) {
	// "Café Plant" with é as the single windows-1252 byte 0xE9.
	input := "name,country\nCaf\xe9 Plant,France\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Charset: "windows-1252",
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Café Plant", rows[1][0])
}

func TestStreamCSV_UnknownCharset(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a,b\n"), CSVOptions{
		Charset: "klingon-8",
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown charset")
	assert.Empty(t, rows)
}

func TestStreamCSV_Comment(t *testing.T) {
	input := "# export 2026-01-15\na,b\n1,2\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Comment: '#',
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "b"}, rows[0])
}

func TestStreamCSV_LazyQuotes(t *testing.T) {
	input := "name,country\nEastern \"A\" Plant,Vietnam\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		LazyQuotes: true,
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, `Eastern "A" Plant`, rows[1][0])
}

func TestStreamCSV_Empty(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStreamCSV_ContextCancellation(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10000; i++ {
		sb.WriteString("a,b,c\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	rowCh, errCh := StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{})

	count := 0
	for range rowCh {
		count++
		if count >= 5 {
			cancel()
			break
		}
	}
	for range rowCh {
	}

	var gotErr error
	for err := range errCh {
		if err != nil {
			gotErr = err
		}
	}
	// Either the goroutine noticed the cancel or finished first.
	if gotErr != nil {
		assert.Contains(t, gotErr.Error(), "cancelled")
	}
	cancel()
}

func TestReadFacilitiesCSV_LegacyHeaders(t *testing.T) {
	input := strings.Join([]string{
		"Factory Name,Factory Type,Country / Region,City,Total Workers,% Female Workers,% Migrant Workers,Product Type Type",
		"Alpha Plant,FINISHED GOODS - COMPONENTS,Vietnam,Hanoi,\"1,200\",45%,12%,Equipment",
		"Beta Works,FINISHED GOODS,China,Shanghai,800,60%,5%,Equipment",
	}, "\n") + "\n"

	rows, err := ReadFacilitiesCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Alpha Plant", rows[0].Name)
	assert.Equal(t, "FINISHED GOODS - COMPONENTS", rows[0].Type)
	assert.Equal(t, "Vietnam", rows[0].Country)
	assert.Equal(t, "1,200", rows[0].TotalWorkers)
	assert.Equal(t, "45%", rows[0].PctFemale)
	assert.Equal(t, "Equipment", rows[0].ProductType)
	assert.Equal(t, "Beta Works", rows[1].Name)
	assert.Equal(t, "800", rows[1].TotalWorkers)
}

func TestReadFacilitiesCSV_HeaderOnly(t *testing.T) {
	rows, err := ReadFacilitiesCSV(context.Background(), strings.NewReader("name,country\n"), CSVOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadFacilitiesCSV_Empty(t *testing.T) {
	rows, err := ReadFacilitiesCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadFacilitiesCSV_BadHeader(t *testing.T) {
	input := "alpha,beta\n1,2\n"
	_, err := ReadFacilitiesCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no facility columns recognized")
}

func TestReadFacilitiesCSV_RaggedRows(t *testing.T) {
	input := "name,country,total_workers\nAlpha,Vietnam\nBeta,China,50,extra\n"
	rows, err := ReadFacilitiesCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Empty(t, rows[0].TotalWorkers)
	assert.Equal(t, "50", rows[1].TotalWorkers)
}
