package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"fjacquet/receipt-recon/cmd/root"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCommand(t *testing.T) {
	root.SetupForTest(t, "")
	defer func() { output, decision = "", "" }()

	var buf bytes.Buffer
	Cmd.SetOut(&buf)
	require.NoError(t, Cmd.RunE(Cmd, nil))
	assert.Contains(t, buf.String(), "Fingerprint,PaymentID,Decision,Candidates,Amount,Currency,DecidedAt")

	output = filepath.Join(t.TempDir(), "out", "links.csv")
	require.NoError(t, Cmd.RunE(Cmd, nil))
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Fingerprint,PaymentID")

	decision = "pending"
	assert.Error(t, Cmd.RunE(Cmd, nil))
}
