package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_Validate(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		kind    EntryKind
		wantErr bool
	}{
		{"empty", NewMetadata(), KindTip, false},
		{"common key", MetadataOf("note", "gm"), KindRain, false},
		{"kind key", MetadataOf("post_id", "p1"), KindTip, false},
		{"foreign key", MetadataOf("rain_id", "r1"), KindTip, true},
		{"unknown key", MetadataOf("favourite_colour", "green"), KindDeposit, true},
		{"future version", Metadata{Version: MetadataVersion + 1}, KindTip, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate(tt.kind)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMetadata)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMetadata_Immutability(t *testing.T) {
	base := MetadataOf("note", "a")
	changed := base.With(MetaNote, "b").With(MetaSource, "api")

	assert.Equal(t, "a", base.Get(MetaNote))
	assert.Equal(t, "b", changed.Get(MetaNote))
	assert.Equal(t, "", base.Get(MetaSource))

	cleared := changed.With(MetaSource, "")
	assert.NotContains(t, cleared.Values, MetaSource)
}

func TestMetadata_MergeAndOnly(t *testing.T) {
	m := MetadataOf("order_id", "o1", "address", "0xdest").Merge(MetadataOf("tx_hash", "0xabc"))
	assert.Equal(t, "0xabc", m.Get(MetaTxHash))

	deposit := m.Only(KindDeposit)
	assert.Equal(t, "o1", deposit.Get(MetaOrderID))
	assert.Equal(t, "", deposit.Get(MetaAddress))
	assert.NoError(t, deposit.Validate(KindDeposit))
}

func TestMetadata_ValueScan(t *testing.T) {
	m := MetadataOf("post_id", "p1")
	v, err := m.Value()
	require.NoError(t, err)

	var back Metadata
	require.NoError(t, back.Scan(v))
	assert.Equal(t, m, back)

	require.NoError(t, back.Scan([]byte(`{"v":1,"values":{"note":"hi"}}`)))
	assert.Equal(t, "hi", back.Get(MetaNote))

	require.NoError(t, back.Scan(nil))
	assert.Equal(t, NewMetadata(), back)

	assert.Error(t, back.Scan(42))
}
