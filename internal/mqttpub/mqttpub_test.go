package mqttpub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopicShape(t *testing.T) {
	p := &Publisher{cfg: Config{TopicPrefix: "btaudiod"}}
	require.Equal(t, "btaudiod/hci0/AA_BB/a2dp-sink/added", p.topic("hci0", "AA_BB", "a2dp-sink", "added"))
}

func TestGenerateClientIDIsUnique(t *testing.T) {
	a := generateClientID()
	b := generateClientID()
	require.NotEqual(t, a, b)
	require.Contains(t, a, "btaudiod_")
}
