//go:build integration

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bimhub/bimhub/pkg/auth"
	"github.com/bimhub/bimhub/pkg/authz"
	"github.com/bimhub/bimhub/pkg/content/memory"
	"github.com/bimhub/bimhub/pkg/models"
	"github.com/bimhub/bimhub/pkg/oauth"
	"github.com/bimhub/bimhub/pkg/processing"
	"github.com/bimhub/bimhub/pkg/store"
	"github.com/bimhub/bimhub/pkg/upload"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	handler http.Handler
	store   *store.GORMStore
	tokens  *auth.TokenService
	queue   *processing.MemoryQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("NewJWTService failed: %v", err)
	}
	tokens := auth.NewTokenService(jwtService, st)
	cs := memory.New()
	queue := processing.NewMemoryQueue()

	handler := NewRouter(Deps{
		Store:   st,
		Content: cs,
		Tokens:  tokens,
		OAuth:   oauth.NewService(st, tokens),
		Checker: authz.NewChecker(st),
		Uploads: upload.New(upload.Config{Store: st, Content: cs, Provider: "memory"}),
		Queue:   queue,
		DevMode: true,
	})

	return &testEnv{handler: handler, store: st, tokens: tokens, queue: queue}
}

// mintToken issues a token pair for a user created on the fly. An empty
// workspaceID produces an unbound token that can reach any workspace
// the user belongs to.
func (e *testEnv) mintToken(t *testing.T, subject, workspaceID string, scopes []string) (userID, accessToken string) {
	t.Helper()

	user, err := e.store.EnsureUser(context.Background(), subject, subject+"@example.com", subject)
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if len(scopes) == 0 {
		scopes = models.AllScopes()
	}
	pair, err := e.tokens.IssueTokenPair(context.Background(), user.ID, workspaceID, "", "", scopes, auth.RequestMeta{})
	if err != nil {
		t.Fatalf("IssueTokenPair failed: %v", err)
	}
	return user.ID, pair.AccessToken
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func (e *testEnv) createWorkspace(t *testing.T, token, name string) string {
	t.Helper()

	rec := e.doJSON(t, http.MethodPost, "/workspaces", token, map[string]string{"name": name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("workspace create returned %d: %s", rec.Code, rec.Body.String())
	}
	var ws models.Workspace
	decodeBody(t, rec, &ws)
	return ws.ID
}

func (e *testEnv) createProject(t *testing.T, token, workspaceID, name string) string {
	t.Helper()

	rec := e.doJSON(t, http.MethodPost, "/workspaces/"+workspaceID+"/projects", token, map[string]string{"name": name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("project create returned %d: %s", rec.Code, rec.Body.String())
	}
	var project models.Project
	decodeBody(t, rec, &project)
	return project.ID
}

func TestHealthProbes(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/health/ready", "/health/stores"} {
		rec := env.doJSON(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s returned %d, want 200", path, rec.Code)
		}
	}
}

func TestAuthenticationRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/workspaces", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request returned %d, want 401", rec.Code)
	}
	var errResp struct {
		Code string `json:"code"`
	}
	decodeBody(t, rec, &errResp)
	if errResp.Code != "unauthenticated" {
		t.Errorf("error code = %q, want unauthenticated", errResp.Code)
	}
}

func TestDevTokenMint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/dev/token", "", map[string]string{"subject": "dev-user"})
	if rec.Code != http.StatusOK {
		t.Fatalf("dev token mint returned %d: %s", rec.Code, rec.Body.String())
	}
	var pair auth.TokenPair
	decodeBody(t, rec, &pair)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}

	// The minted token works against authenticated routes.
	listRec := env.doJSON(t, http.MethodGet, "/workspaces", pair.AccessToken, nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("workspace list with dev token returned %d", listRec.Code)
	}
}

func TestWorkspaceProjectFlow(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.mintToken(t, "alice", "", nil)

	wsID := env.createWorkspace(t, token, "Acme BIM")
	prjID := env.createProject(t, token, wsID, "Tower A")

	rec := env.doJSON(t, http.MethodGet, "/projects/"+prjID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("project get returned %d: %s", rec.Code, rec.Body.String())
	}
	var project models.Project
	decodeBody(t, rec, &project)
	if project.WorkspaceID != wsID || project.Name != "Tower A" {
		t.Errorf("unexpected project %+v", project)
	}

	listRec := env.doJSON(t, http.MethodGet, "/workspaces/"+wsID+"/projects", token, nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("project list returned %d", listRec.Code)
	}
	var page struct {
		Total int64 `json:"total"`
	}
	decodeBody(t, listRec, &page)
	if page.Total != 1 {
		t.Errorf("project list total = %d, want 1", page.Total)
	}
}

func TestCrossWorkspaceIsolation(t *testing.T) {
	env := newTestEnv(t)

	// Bob owns workspace B with a project in it.
	_, bobToken := env.mintToken(t, "bob", "", nil)
	wsB := env.createWorkspace(t, bobToken, "Workspace B")
	prjB := env.createProject(t, bobToken, wsB, "Secret Project")

	// Alice's token is bound to workspace A.
	_, aliceUnbound := env.mintToken(t, "alice", "", nil)
	wsA := env.createWorkspace(t, aliceUnbound, "Workspace A")
	aliceID, aliceBound := env.mintToken(t, "alice", wsA, nil)
	_ = aliceID

	assertCrossWorkspace := func(path string) {
		t.Helper()
		rec := env.doJSON(t, http.MethodGet, path, aliceBound, nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("GET %s returned %d, want 403", path, rec.Code)
		}
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		decodeBody(t, rec, &errResp)
		if errResp.Code != "cross_workspace" {
			t.Errorf("GET %s error code = %q, want cross_workspace", path, errResp.Code)
		}
		if strings.Contains(strings.ToLower(errResp.Message), "project") {
			t.Errorf("GET %s leaks resource kind in message %q", path, errResp.Message)
		}
	}

	// A real foreign project and a made-up id must be indistinguishable.
	assertCrossWorkspace("/projects/" + prjB)
	assertCrossWorkspace("/projects/00000000-0000-0000-0000-000000000000")
}

func TestUploadCommitPipeline(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.mintToken(t, "carol", "", nil)
	wsID := env.createWorkspace(t, token, "Builds")
	prjID := env.createProject(t, token, wsID, "Bridge")

	// Reserve.
	rec := env.doJSON(t, http.MethodPost, "/projects/"+prjID+"/uploads", token, map[string]any{
		"file_name": "bridge.ifc",
		"mode":      "server_proxy",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("reserve returned %d: %s", rec.Code, rec.Body.String())
	}
	var reserved struct {
		Session models.UploadSession `json:"session"`
	}
	decodeBody(t, rec, &reserved)
	if reserved.Session.Status != models.UploadStatusReserved {
		t.Fatalf("session status = %v, want Reserved", reserved.Session.Status)
	}
	sessionID := reserved.Session.ID

	// Upload content as multipart.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "bridge.ifc")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	if _, err := part.Write(bytes.Repeat([]byte("IFCDATA\n"), 512)); err != nil {
		t.Fatalf("failed to write part: %v", err)
	}
	mw.Close()

	contentReq := httptest.NewRequest(http.MethodPost, "/projects/"+prjID+"/uploads/"+sessionID+"/content", &buf)
	contentReq.Header.Set("Content-Type", mw.FormDataContentType())
	contentReq.Header.Set("Authorization", "Bearer "+token)
	contentRec := httptest.NewRecorder()
	env.handler.ServeHTTP(contentRec, contentReq)
	if contentRec.Code != http.StatusOK {
		t.Fatalf("content upload returned %d: %s", contentRec.Code, contentRec.Body.String())
	}

	// Commit with a model version.
	commitRec := env.doJSON(t, http.MethodPost, "/projects/"+prjID+"/uploads/"+sessionID+"/commit", token, map[string]any{
		"category":             "ifc",
		"create_model_version": true,
		"model_name":           "Bridge Model",
	})
	if commitRec.Code != http.StatusOK {
		t.Fatalf("commit returned %d: %s", commitRec.Code, commitRec.Body.String())
	}
	var committed struct {
		File         *models.File          `json:"file"`
		ModelVersion *models.ModelVersion  `json:"model_version"`
		Job          *models.ProcessingJob `json:"job"`
	}
	decodeBody(t, commitRec, &committed)
	if committed.File == nil || committed.File.Category != models.FileCategoryIfc {
		t.Fatalf("unexpected committed file %+v", committed.File)
	}
	if committed.ModelVersion == nil || committed.ModelVersion.VersionNumber != 1 {
		t.Fatalf("unexpected model version %+v", committed.ModelVersion)
	}
	if committed.Job == nil {
		t.Fatal("expected a conversion job")
	}
	if env.queue.Len() != 1 {
		t.Errorf("queue length = %d, want 1", env.queue.Len())
	}

	// Commit is idempotent.
	again := env.doJSON(t, http.MethodPost, "/projects/"+prjID+"/uploads/"+sessionID+"/commit", token, map[string]any{})
	if again.Code != http.StatusOK {
		t.Fatalf("repeated commit returned %d: %s", again.Code, again.Body.String())
	}
	var repeated struct {
		File *models.File `json:"file"`
	}
	decodeBody(t, again, &repeated)
	if repeated.File.ID != committed.File.ID {
		t.Errorf("repeated commit returned file %s, want %s", repeated.File.ID, committed.File.ID)
	}

	// The stored bytes round-trip through the download endpoint.
	dl := env.doJSON(t, http.MethodGet, "/files/"+committed.File.ID+"/content", token, nil)
	if dl.Code != http.StatusOK {
		t.Fatalf("download returned %d", dl.Code)
	}
	if int64(dl.Body.Len()) != committed.File.SizeBytes {
		t.Errorf("downloaded %d bytes, file record says %d", dl.Body.Len(), committed.File.SizeBytes)
	}
}

func TestCreateVersionReturns201(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.mintToken(t, "dave", "", nil)
	wsID := env.createWorkspace(t, token, "Plants")
	prjID := env.createProject(t, token, wsID, "Refinery")

	// Seed a committed IFC file directly.
	file := &models.File{
		ProjectID:       prjID,
		Name:            "refinery.ifc",
		Category:        models.FileCategoryIfc,
		StorageProvider: "memory",
		StorageKey:      "k/refinery.ifc",
		SizeBytes:       10,
	}
	if _, err := env.store.CreateFile(context.Background(), file); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	rec := env.doJSON(t, http.MethodPost, "/projects/"+prjID+"/models", token, map[string]string{"name": "Refinery"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("model create returned %d", rec.Code)
	}
	var model models.Model
	decodeBody(t, rec, &model)

	verRec := env.doJSON(t, http.MethodPost, "/models/"+model.ID+"/versions", token, map[string]string{"ifc_file_id": file.ID})
	if verRec.Code != http.StatusCreated {
		t.Fatalf("version create returned %d: %s", verRec.Code, verRec.Body.String())
	}

	// A file from another project is rejected before any version is
	// created.
	otherPrj := env.createProject(t, token, wsID, "Other")
	badRec := env.doJSON(t, http.MethodPost, "/models/"+model.ID+"/versions", token, map[string]string{"ifc_file_id": mustSeedFile(t, env, otherPrj)})
	if badRec.Code != http.StatusBadRequest {
		t.Fatalf("cross-project version create returned %d, want 400", badRec.Code)
	}
}

func mustSeedFile(t *testing.T, env *testEnv, projectID string) string {
	t.Helper()
	file := &models.File{
		ProjectID:       projectID,
		Name:            "other.ifc",
		Category:        models.FileCategoryIfc,
		StorageProvider: "memory",
		StorageKey:      "k/other.ifc",
		SizeBytes:       1,
	}
	if _, err := env.store.CreateFile(context.Background(), file); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	return file.ID
}

func TestPATLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.mintToken(t, "erin", "", nil)
	wsID := env.createWorkspace(t, token, "Tokens")

	rec := env.doJSON(t, http.MethodPost, "/workspaces/"+wsID+"/pats", token, map[string]any{
		"name":   "ci-token",
		"scopes": []string{models.ScopeWorkspacesRead, models.ScopeProjectsRead},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("pat create returned %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Token string                      `json:"token"`
		PAT   *models.PersonalAccessToken `json:"pat"`
	}
	decodeBody(t, rec, &created)
	if created.Token == "" {
		t.Fatal("expected the raw token in the create response")
	}

	// The PAT authenticates within its workspace and scopes.
	getRec := env.doJSON(t, http.MethodGet, "/workspaces/"+wsID, created.Token, nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("workspace get with PAT returned %d: %s", getRec.Code, getRec.Body.String())
	}

	// Scopes are enforced: the PAT has no workspaces:write.
	patchRec := env.doJSON(t, http.MethodPatch, "/workspaces/"+wsID, created.Token, map[string]string{"name": "renamed"})
	if patchRec.Code != http.StatusForbidden {
		t.Fatalf("workspace patch with read-only PAT returned %d, want 403", patchRec.Code)
	}

	// Revoke, then the PAT stops working.
	revokeRec := env.doJSON(t, http.MethodDelete, "/pats/"+created.PAT.ID, token, nil)
	if revokeRec.Code != http.StatusNoContent {
		t.Fatalf("pat revoke returned %d: %s", revokeRec.Code, revokeRec.Body.String())
	}
	afterRec := env.doJSON(t, http.MethodGet, "/workspaces/"+wsID, created.Token, nil)
	if afterRec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked PAT returned %d, want 401", afterRec.Code)
	}

	// Double revoke conflicts.
	doubleRec := env.doJSON(t, http.MethodDelete, "/pats/"+created.PAT.ID, token, nil)
	if doubleRec.Code != http.StatusConflict {
		t.Fatalf("double revoke returned %d, want 409", doubleRec.Code)
	}
}

func TestOAuthTokenEndpointErrors(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{}
	form.Set("grant_type", "password")
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unsupported grant returned %d, want 400", rec.Code)
	}
	var errResp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &errResp)
	if errResp.Error != oauth.ErrorCodeUnsupportedGrantType {
		t.Errorf("error = %q, want %q", errResp.Error, oauth.ErrorCodeUnsupportedGrantType)
	}
}

func TestOAuthAuthorizationCodeFlow(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.mintToken(t, "frank", "", nil)
	wsID := env.createWorkspace(t, token, "Apps")

	// Register a public client.
	appRec := env.doJSON(t, http.MethodPost, "/workspaces/"+wsID+"/oauth-apps", token, map[string]any{
		"name":           "viewer-app",
		"client_type":    "public",
		"redirect_uris":  []string{"https://viewer.example.com/callback"},
		"allowed_scopes": []string{models.ScopeModelsRead, models.ScopeFilesRead},
	})
	if appRec.Code != http.StatusCreated {
		t.Fatalf("app create returned %d: %s", appRec.Code, appRec.Body.String())
	}
	var appResp struct {
		App *models.OAuthApp `json:"app"`
	}
	decodeBody(t, appRec, &appResp)

	// Authorize with PKCE (plain, for test readability).
	verifier := "test-verifier-test-verifier-test-verifier-123"
	form := url.Values{}
	form.Set("response_type", "code")
	form.Set("client_id", appResp.App.ClientID)
	form.Set("redirect_uri", "https://viewer.example.com/callback")
	form.Set("scope", models.ScopeModelsRead)
	form.Set("state", "xyz")
	form.Set("code_challenge", verifier)
	form.Set("code_challenge_method", "plain")

	authReq := httptest.NewRequest(http.MethodPost, "/oauth/authorize", strings.NewReader(form.Encode()))
	authReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	authReq.Header.Set("Authorization", "Bearer "+token)
	authRec := httptest.NewRecorder()
	env.handler.ServeHTTP(authRec, authReq)

	if authRec.Code != http.StatusFound {
		t.Fatalf("authorize returned %d: %s", authRec.Code, authRec.Body.String())
	}
	loc, err := url.Parse(authRec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("failed to parse redirect location: %v", err)
	}
	if got := loc.Query().Get("state"); got != "xyz" {
		t.Errorf("state = %q, want xyz", got)
	}
	code := loc.Query().Get("code")
	if code == "" {
		t.Fatalf("no code in redirect %q", authRec.Header().Get("Location"))
	}

	// Exchange the code.
	exchange := url.Values{}
	exchange.Set("grant_type", "authorization_code")
	exchange.Set("code", code)
	exchange.Set("redirect_uri", "https://viewer.example.com/callback")
	exchange.Set("client_id", appResp.App.ClientID)
	exchange.Set("code_verifier", verifier)

	tokenReq := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(exchange.Encode()))
	tokenReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokenRec := httptest.NewRecorder()
	env.handler.ServeHTTP(tokenRec, tokenReq)

	if tokenRec.Code != http.StatusOK {
		t.Fatalf("token exchange returned %d: %s", tokenRec.Code, tokenRec.Body.String())
	}
	if cc := tokenRec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
	var pair auth.TokenPair
	decodeBody(t, tokenRec, &pair)
	if pair.AccessToken == "" {
		t.Fatal("expected an access token")
	}

	// Codes are single use.
	replayRec := httptest.NewRecorder()
	replayReq := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(exchange.Encode()))
	replayReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	env.handler.ServeHTTP(replayRec, replayReq)
	if replayRec.Code != http.StatusBadRequest {
		t.Fatalf("code replay returned %d, want 400", replayRec.Code)
	}
}

func TestCorrelationHeadersEchoed(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("X-Correlation-ID = %q, want corr-123", got)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "corr-123" {
		t.Errorf("X-Request-ID = %q, want corr-123", got)
	}
}

func TestWorkspaceMembershipRBAC(t *testing.T) {
	env := newTestEnv(t)
	ownerID, ownerToken := env.mintToken(t, "owner", "", nil)
	_ = ownerID
	wsID := env.createWorkspace(t, ownerToken, "Team")

	guestID, guestToken := env.mintToken(t, "guest", "", nil)

	// Guests cannot self-invite; the owner adds them.
	rec := env.doJSON(t, http.MethodPost, "/workspaces/"+wsID+"/members", ownerToken, map[string]string{
		"user_id": guestID,
		"role":    "guest",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("member upsert returned %d: %s", rec.Code, rec.Body.String())
	}

	// A guest can read but not create projects.
	getRec := env.doJSON(t, http.MethodGet, "/workspaces/"+wsID, guestToken, nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("guest workspace get returned %d", getRec.Code)
	}
	createRec := env.doJSON(t, http.MethodPost, "/workspaces/"+wsID+"/projects", guestToken, map[string]string{"name": "nope"})
	if createRec.Code != http.StatusForbidden {
		t.Fatalf("guest project create returned %d, want 403", createRec.Code)
	}

	// The last owner cannot be removed.
	removeRec := env.doJSON(t, http.MethodDelete, fmt.Sprintf("/workspaces/%s/members/%s", wsID, ownerID), ownerToken, nil)
	if removeRec.Code != http.StatusConflict {
		t.Fatalf("last owner removal returned %d, want 409", removeRec.Code)
	}
}
