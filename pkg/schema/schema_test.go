package schema

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchema() Schema {
	return Schema{Tables: []Table{{
		Name:     "nyc_311",
		RowCount: 1234567,
		Columns: []Column{
			{Name: "unique_key", Type: "BIGINT"},
			{Name: "complaint_type", Type: "VARCHAR"},
			{Name: "created_date", Type: "TIMESTAMP"},
		},
	}}}
}

func TestSchemaEmpty(t *testing.T) {
	assert.True(t, Schema{}.Empty())
	assert.False(t, sampleSchema().Empty())
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, []string{"nyc_311"}, sampleSchema().TableNames())
	assert.Empty(t, Schema{}.TableNames())
}

func TestFormat(t *testing.T) {
	got := sampleSchema().Format()
	assert.Contains(t, got, "nyc_311 (1234567 rows):")
	assert.Contains(t, got, "  - unique_key (BIGINT)")
	assert.Contains(t, got, "  - complaint_type (VARCHAR)")
	assert.Contains(t, got, "  - created_date (TIMESTAMP)")
}

func TestFormatOmitsZeroRowCount(t *testing.T) {
	s := Schema{Tables: []Table{{Name: "empty_table", Columns: []Column{{Name: "a", Type: "INTEGER"}}}}}
	got := s.Format()
	assert.Contains(t, got, "empty_table:")
	assert.NotContains(t, got, "(0 rows)")
}

func TestProviderCachesSnapshot(t *testing.T) {
	loads := 0
	p := newProvider(nil, time.Minute, func(ctx context.Context) (Schema, error) {
		loads++
		return sampleSchema(), nil
	})

	for range 3 {
		s, err := p.FetchSchema(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"nyc_311"}, s.TableNames())
	}
	assert.Equal(t, 1, loads)
}

func TestProviderDoesNotCacheErrors(t *testing.T) {
	loads := 0
	p := newProvider(nil, time.Minute, func(ctx context.Context) (Schema, error) {
		loads++
		if loads == 1 {
			return Schema{}, errors.New("database locked")
		}
		return sampleSchema(), nil
	})

	_, err := p.FetchSchema(context.Background())
	require.Error(t, err)

	s, err := p.FetchSchema(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Empty())
	assert.Equal(t, 2, loads)
}

func TestProviderInvalidate(t *testing.T) {
	loads := 0
	p := newProvider(nil, time.Minute, func(ctx context.Context) (Schema, error) {
		loads++
		return sampleSchema(), nil
	})

	_, err := p.FetchSchema(context.Background())
	require.NoError(t, err)
	p.Invalidate()
	_, err = p.FetchSchema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}
