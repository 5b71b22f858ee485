package root

import (
	"os"
	"path/filepath"
	"testing"

	"fjacquet/receipt-recon/internal/config"
	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/models"
)

// SetupForTest loads a configuration whose database lives in a temporary
// directory. extra is appended to the generated config file. The previous
// state is restored when the test ends.
func SetupForTest(t testing.TB, extra string) *config.Config {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "log:\n  level: error\n" +
		"store:\n  path: " + filepath.Join(dir, "recon.db") + "\n" +
		"extraction:\n  method_timeout_seconds: 2\n  disabled: [pdftotext]\n" + extra
	if err := os.WriteFile(path, []byte(body), models.PermissionFile); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	prevFile, prevCfg, prevLog := ConfigFile, AppConfig, Log
	t.Cleanup(func() {
		ConfigFile, AppConfig, Log = prevFile, prevCfg, prevLog
	})

	ConfigFile = path
	if err := Setup(); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	Log = logging.NewMockLogger()
	return AppConfig
}
