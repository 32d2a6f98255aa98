package jobs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "extraction_jobs", ExtractionJob{}.TableName())
	assert.Equal(t, "extraction_logs", ExtractionLog{}.TableName())
}

func TestExtractionJobIsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusInProgress, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			j := &ExtractionJob{Status: tc.status}
			assert.Equal(t, tc.terminal, j.IsTerminal())
		})
	}
}

func TestActiveKey(t *testing.T) {
	assert.Equal(t, "7:workitems", ActiveKey(7, ArtifactWorkItems))
	assert.Equal(t, "7:all-metadata", ActiveKey(7, ArtifactAllMetadata))
}

func TestPendingJobDescriptorCarriesStartedAt(t *testing.T) {
	raw, err := json.Marshal(&ExtractionJob{ID: "j-1", ProjectID: 3, ArtifactType: ArtifactWorkItems, Status: StatusPending})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"id", "projectId", "status", "artifactType", "startedAt", "progress", "totalItems"} {
		assert.Contains(t, fields, key)
	}
	assert.Nil(t, fields["startedAt"])
	assert.NotContains(t, fields, "completedAt")
}
