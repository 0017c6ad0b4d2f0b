package introspect

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const netstatOutput = `
Active Connections

  Proto  Local Address          Foreign Address        State           PID
  TCP    0.0.0.0:135            0.0.0.0:0              LISTENING       1040
  TCP    10.0.0.1:50112         10.0.0.5:22            ESTABLISHED     4521
  TCP    10.0.0.1:50113         10.0.0.5:8022          ESTABLISHED     4630
  TCP    10.0.0.1:50114         10.0.0.50:22           ESTABLISHED     4700
  TCP    10.0.0.1:50115         10.0.0.6:22            ESTABLISHED     4801
  TCP    10.0.0.1:50116         10.0.0.5:22            SYN_SENT        4902
  TCP    10.0.0.1:50117         10.0.0.5:22            TIME_WAIT       0
`

const tasklistOutput = "\r\n" +
	"Image Name                     PID Session Name        Session#    Mem Usage\r\n" +
	"========================= ======== ================ =========== ============\r\n" +
	"agentX.exe                    4521 Console                    1     12,340 K\r\n" +
	"explorer.exe                  3312 Console                    1     98,112 K\r\n" +
	"agentX.exe                    4630 Console                    1     11,904 K\r\n"

func TestParseConnectionRows_FiltersHostAndState(t *testing.T) {
	rows := slices.Collect(ParseConnectionRows(netstatOutput, "10.0.0.5", StateEstablished))

	require.Len(t, rows, 2)
	assert.Equal(t, ConnectionRow{
		Protocol: "TCP",
		Local:    "10.0.0.1:50112",
		Remote:   "10.0.0.5:22",
		State:    StateEstablished,
		PID:      4521,
	}, rows[0])
	assert.Equal(t, "10.0.0.5:8022", rows[1].Remote)
	assert.Equal(t, 4630, rows[1].PID)
	for _, row := range rows {
		assert.Equal(t, "10.0.0.5", row.RemoteHost())
	}
}

func TestParseConnectionRows_SynSent(t *testing.T) {
	rows := slices.Collect(ParseConnectionRows(netstatOutput, "10.0.0.5", StateSynSent))

	require.Len(t, rows, 1)
	assert.Equal(t, 4902, rows[0].PID)
}

func TestParseConnectionRows_IPv6(t *testing.T) {
	raw := "  TCP    [fe80::2]:50200    [fe80::1]:22    ESTABLISHED     5100\n"
	rows := slices.Collect(ParseConnectionRows(raw, "fe80::1", StateEstablished))

	require.Len(t, rows, 1)
	assert.Equal(t, "fe80::1", rows[0].RemoteHost())
	assert.Equal(t, 5100, rows[0].PID)
}

func TestParseProcessRows(t *testing.T) {
	rows := slices.Collect(ParseProcessRows(tasklistOutput, "agentX.exe"))

	assert.Equal(t, []ProcessRow{
		{PID: 4521, Image: "agentX.exe"},
		{PID: 4630, Image: "agentX.exe"},
	}, rows)
}

func TestParsers_EmptyAndGarbledInput(t *testing.T) {
	inputs := map[string]string{
		"empty":       "",
		"blank lines": "\n\n\r\n   \n",
		"garbage":     "INFO: No tasks are running which match the specified criteria.\n\x00\x01 ~~~",
		"short rows":  "agentX.exe\nTCP 10.0.0.5:22 ESTABLISHED\n",
		"bad pids":    "agentX.exe abc Console\nTCP 1.1.1.1:1 10.0.0.5:22 ESTABLISHED pid\n",
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, slices.Collect(ParseProcessRows(raw, "agentX.exe")))
			assert.Empty(t, slices.Collect(ParseConnectionRows(raw, "10.0.0.5", StateEstablished)))
		})
	}
}

func TestParseProcessRows_StopsEarly(t *testing.T) {
	var seen []int
	for row := range ParseProcessRows(tasklistOutput, "agentX.exe") {
		seen = append(seen, row.PID)
		break
	}
	assert.Equal(t, []int{4521}, seen)
}

func TestTextParserImplementsParser(t *testing.T) {
	var p Parser = TextParser{}

	assert.Len(t, slices.Collect(p.ProcessRows(tasklistOutput, "explorer.exe")), 1)
	assert.Len(t, slices.Collect(p.ConnectionRows(netstatOutput, "10.0.0.6", StateEstablished)), 1)
}
