package repl_test

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"commercial-docs/internal/adapters/repl"
	"commercial-docs/internal/app"
	"commercial-docs/internal/store/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func session(t *testing.T, script string) (string, app.ApplicationService) {
	t.Helper()
	svc := app.New(context.Background(), memory.NewSeeded(), zerolog.Nop())
	var out bytes.Buffer
	repl.Run(context.Background(), svc, bufio.NewReader(strings.NewReader(script)), &out)
	return out.String(), svc
}

func TestRun_NewDocumentWizard(t *testing.T) {
	out, svc := session(t, strings.Join([]string{
		"/new devis 4",
		"3 2",
		"abc",
		"3 1 100.000 10",
		"done",
		"2026-05-10",
		"",
		"y",
		"/exit",
	}, "\n")+"\n")

	assert.Contains(t, out, "Invalid format")
	assert.Contains(t, out, "Preview:")
	assert.Contains(t, out, "DEV-001")
	assert.Contains(t, out, "Goodbye!")

	res, err := svc.ListDocuments(context.Background(), "devis")
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Len(t, res.Documents[0].Lines, 2)
	assert.Equal(t, int64(4), res.Documents[0].PartyID)
}

func TestRun_WizardCancelled(t *testing.T) {
	out, svc := session(t, "/new facture\ncancel\n")

	assert.Contains(t, out, "Cancelled.")
	res, err := svc.ListDocuments(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
}

func TestRun_DelegatesToCLI(t *testing.T) {
	out, _ := session(t, "/products\nallocate facture\n/frobnicate\n")

	assert.Contains(t, out, "Clavier USB")
	assert.Contains(t, out, "FAC-")
	assert.Contains(t, out, "Error: usage")
}
