package cmd

import (
	"strings"
	"testing"
)

func TestRunServeRejectsBadPort(t *testing.T) {
	restore := saveCmdVars(t)
	defer restore()
	useFakeOllama(t)
	portFlag = 70000

	err := runServe(serveCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("error = %v, want port out of range", err)
	}
}
