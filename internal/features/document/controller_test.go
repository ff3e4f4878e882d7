package document

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go-letters/internal/common/response"
	"go-letters/internal/config"
	"go-letters/internal/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(h *harness) *fiber.App {
	cfg := &config.Config{
		SkipAuth:      true,
		AdminRoles:    []string{"admin"},
		RevisionRoles: []string{"reviewer"},
	}
	app := fiber.New()
	NewDocumentApi(NewDocumentController(h.svc, cfg), cfg).Setup(app)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, user, roles, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Dev-User", user)
	req.Header.Set("X-Dev-Roles", roles)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestSignEndpointReturnsProgress(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	app := newTestApp(h)
	doc := submitted(t, h)

	path := "/api/documents/" + doc.ID.Hex() + "/signatories/" + signatoryOf(t, doc, "alice") + "/sign"
	resp, body := call(t, app, http.MethodPost, path, "alice", "staff", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	var out TransitionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, doc.ID.Hex(), out.ID)
	assert.Equal(t, workflow.StatusPartiallySigned, out.Status)
	assert.Equal(t, workflow.Progress{Total: 2, Signed: 1, Pending: 1}, out.Progress)
	assert.Equal(t, 1, out.CurrentVersion)

	resp, body = call(t, app, http.MethodPost, path, "alice", "staff", "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var failure response.ErrorBody
	require.NoError(t, json.Unmarshal(body, &failure))
	assert.Equal(t, workflow.KindAlreadyDecided, failure.Error.Kind)
}

func TestSignEndpointRejectsOtherUsersSlot(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	app := newTestApp(h)
	doc := submitted(t, h)

	path := "/api/documents/" + doc.ID.Hex() + "/signatories/" + signatoryOf(t, doc, "alice") + "/sign"
	resp, _ := call(t, app, http.MethodPost, path, "bob", "staff", "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAssignAfterSubmitIsLocked(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	app := newTestApp(h)
	doc := submitted(t, h)

	resp, body := call(t, app, http.MethodPut, "/api/documents/"+doc.ID.Hex()+"/slots/head", "creator", "staff", `{"user_id":"carol"}`)
	assert.Equal(t, fiber.StatusLocked, resp.StatusCode, string(body))
}

func TestRejectWithoutNotesIsInvalid(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	app := newTestApp(h)
	doc := submitted(t, h)

	path := "/api/documents/" + doc.ID.Hex() + "/signatories/" + signatoryOf(t, doc, "bob") + "/reject"
	resp, body := call(t, app, http.MethodPost, path, "bob", "staff", `{}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var failure response.ErrorBody
	require.NoError(t, json.Unmarshal(body, &failure))
	assert.Equal(t, []string{"notes"}, failure.Error.Fields)
}

func TestCreateValidatesBody(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	app := newTestApp(h)

	resp, body := call(t, app, http.MethodPost, "/api/documents", "creator", "staff", `{"kind":"memo"}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var failure response.ErrorBody
	require.NoError(t, json.Unmarshal(body, &failure))
	assert.ElementsMatch(t, []string{"kind", "title", "template_id"}, failure.Error.Fields)
}

func TestRegisterExportRequiresAdmin(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	app := newTestApp(h)

	resp, _ := call(t, app, http.MethodGet, "/api/documents/register/export", "alice", "staff", "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/api/documents/register/export", "root", "admin", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")

	resp, _ = call(t, app, http.MethodGet, "/api/documents/register/export?from=2026-01-01&to=2026-10-20", "root", "admin", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "attachment; filename=register-2026-01-01-2026-10-20.xlsx", resp.Header.Get("Content-Disposition"))
}
