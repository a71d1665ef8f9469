package cli_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"commercial-docs/internal/adapters/cli"
	"commercial-docs/internal/app"
	"commercial-docs/internal/store/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) app.ApplicationService {
	t.Helper()
	return app.New(context.Background(), memory.NewSeeded(), zerolog.Nop())
}

func run(t *testing.T, svc app.ApplicationService, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := cli.Run(context.Background(), svc, args, strings.NewReader(input), &out)
	return out.String(), err
}

func TestRun_Allocate(t *testing.T) {
	svc := newService(t)

	out, err := run(t, svc, "", "allocate", "devis")
	require.NoError(t, err)
	assert.Equal(t, "DEV-001\n", out)

	out, err = run(t, svc, "", "numbering", "devis")
	require.NoError(t, err)
	assert.Equal(t, "DEV-002\n", out)
}

func TestRun_MoveRefused(t *testing.T) {
	svc := newService(t)

	out, err := run(t, svc, "", "move", "1", "out", "2")
	var refused *cli.RefusedError
	require.ErrorAs(t, err, &refused)
	assert.Equal(t, app.CodeNegativeStock, refused.Failure.Code)
	assert.Contains(t, out, "Current stock: 0")
}

func TestRun_SaveRefusedShowsStock(t *testing.T) {
	svc := newService(t)

	out, err := run(t, svc, `{"document_type": "bonLivraison", "lines": [{"product_id": 2, "quantity": "3"}]}`, "save")
	var refused *cli.RefusedError
	require.ErrorAs(t, err, &refused)
	assert.Equal(t, app.CodeNegativeStock, refused.Failure.Code)
	assert.Contains(t, out, "Current stock of product 2: 0")
}

func TestRun_MoveAndReconcile(t *testing.T) {
	svc := newService(t)

	out, err := run(t, svc, "", "move", "1", "in", "12", "initial", "count")
	require.NoError(t, err)
	assert.Contains(t, out, "Balance: 12")

	out, err = run(t, svc, "", "reconcile", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "in sync: true")

	out, err = run(t, svc, "", "stock", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "manual")
}

func TestRun_SaveShowAndList(t *testing.T) {
	svc := newService(t)

	body := `{"document_type":"devis","party_id":3,"date":"2026-02-01",
		"lines":[{"product_id":3,"quantity":"2"}]}`
	out, err := run(t, svc, body, "save")
	require.NoError(t, err)
	assert.Contains(t, out, "DEV-001")
	assert.Contains(t, out, "Installation sur site")

	out, err = run(t, svc, "", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "SAVED")

	out, err = run(t, svc, "", "list", "devis")
	require.NoError(t, err)
	assert.Contains(t, out, "DEV-001")

	_, err = run(t, svc, "", "transition", "1", "paid")
	var refused *cli.RefusedError
	require.ErrorAs(t, err, &refused)
	assert.Equal(t, app.CodeInvalidTransition, refused.Failure.Code)
}

func TestRun_Usage(t *testing.T) {
	svc := newService(t)

	_, err := run(t, svc, "", "frobnicate")
	assert.True(t, errors.Is(err, cli.ErrUsage))

	_, err = run(t, svc, "", "show", "x")
	assert.True(t, errors.Is(err, cli.ErrUsage))

	_, err = run(t, svc, "", "taxes")
	assert.True(t, errors.Is(err, cli.ErrUsage))

	_, err = run(t, svc, "{", "save")
	assert.Error(t, err)
}
