package broker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
	"github.com/avvvet/checkin-services/internal/comm"
)

func TestDecodeEvent(t *testing.T) {
	ev := comm.NewCheckinEvent("instance-1", "typed", models.Record{Name: "홍길동", Location: "일원지구대"})
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	got, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, "instance-1", got.Instance)
	assert.Equal(t, "홍길동", got.Record.Name)
}

func TestDecodeEvent_Rejects(t *testing.T) {
	_, err := DecodeEvent([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`{"schema":"typed"}`))
	assert.Error(t, err)
}
