package catalog

import (
	"errors"
	"fmt"
	"iter"
	"testing"

	"resource-downloader/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
		notFound  bool
	}{
		{400, false, false},
		{401, false, false},
		{404, false, true},
		{410, false, true},
		{429, true, false},
		{500, true, false},
		{503, true, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ClassifyStatus("get project", tt.status, "body")
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, tt.notFound, errors.Is(err, ErrNotFound))
			assert.Contains(t, err.Error(), fmt.Sprintf("status %d", tt.status))
		})
	}
}

func TestIsTransientUnwraps(t *testing.T) {
	err := fmt.Errorf("fetch sodium: %w", &TransportError{Op: "fetch", Transient: true, Err: errors.New("reset")})
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsTransient(nil))
}

func seq(versions []resource.VersionRecord, err error) iter.Seq2[resource.VersionRecord, error] {
	return func(yield func(resource.VersionRecord, error) bool) {
		for _, v := range versions {
			if !yield(v, nil) {
				return
			}
		}
		if err != nil {
			yield(resource.VersionRecord{}, err)
		}
	}
}

func TestCollect(t *testing.T) {
	versions := []resource.VersionRecord{{ID: "a"}, {ID: "b"}}

	got, err := Collect(seq(versions, nil))
	require.NoError(t, err)
	assert.Equal(t, versions, got)

	boom := errors.New("boom")
	_, err = Collect(seq(versions, boom))
	assert.ErrorIs(t, err, boom)
}
