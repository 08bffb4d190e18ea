package cmdutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worksync/internal/domain/entity"
)

func TestParseFields(t *testing.T) {
	fields, err := ParseFields([]string{"name=Кладка", "floor=2", "done=true", "note=a=b"}, `{"volume": 1.5}`)
	require.NoError(t, err)

	assert.Equal(t, entity.Fields{
		"name":   "Кладка",
		"floor":  float64(2),
		"done":   true,
		"note":   "a=b",
		"volume": 1.5,
	}, fields)

	_, err = ParseFields([]string{"novalue"}, "")
	assert.Error(t, err)

	_, err = ParseFields(nil, "{broken")
	assert.Error(t, err)
}

func TestParentFlags_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		flags   ParentFlags
		kind    entity.ParentKind
		ref     string
		wantErr bool
	}{
		{name: "work", flags: ParentFlags{Work: "42"}, kind: entity.ParentWork, ref: "42"},
		{name: "comment", flags: ParentFlags{Comment: "temp_x"}, kind: entity.ParentComment, ref: "temp_x"},
		{name: "none", flags: ParentFlags{}, wantErr: true},
		{name: "two", flags: ParentFlags{Work: "1", ProgressLog: "2"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ref, err := tt.flags.Resolve()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.ref, ref)
		})
	}
}
