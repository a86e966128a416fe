package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ragavi-632007/visionx/internal/analysis"
	"github.com/ragavi-632007/visionx/internal/document"
	"github.com/ragavi-632007/visionx/internal/pipeline"
	"github.com/ragavi-632007/visionx/internal/session"
)

func doRequest(t *testing.T, env *testEnv, method, path, token string, body io.Reader, contentType string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)

	var payload map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") && rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
		}
	}
	return rr, payload
}

func doJSON(t *testing.T, env *testEnv, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	return doRequest(t, env, method, path, token, reader, "application/json")
}

func uploadFile(t *testing.T, env *testEnv, token, name string, data []byte, fields map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if data != nil {
		part, err := writer.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return doRequest(t, env, http.MethodPost, "/api/documents", token, &buf, writer.FormDataContentType())
}

func details(t *testing.T, payload map[string]any) map[string]any {
	t.Helper()
	out, ok := payload["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected details in %v", payload)
	}
	return out
}

func TestUploadPlainPDFStoresAnalysis(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "usr_1", "member")

	rr, payload := uploadFile(t, env, token, "lease.pdf", plainPDF(), map[string]string{"language": "hi"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	id, _ := payload["id"].(string)
	if id == "" {
		t.Fatalf("expected document id in %v", payload)
	}
	if payload["summary"] != "Summary in hi" {
		t.Fatalf("unexpected summary %v", payload["summary"])
	}
	if payload["provider"] != "googleai" || payload["model"] != "gemini-test" {
		t.Fatalf("unexpected provider/model %v/%v", payload["provider"], payload["model"])
	}
	if _, ok := payload["insights"].(map[string]any); !ok {
		t.Fatalf("expected insights in response")
	}

	stored := env.store.documents[id]
	if stored.OwnerID != "usr_1" || stored.IsProtected {
		t.Fatalf("unexpected stored document %+v", stored)
	}
	if stored.ContentText == "" {
		t.Fatal("expected extracted text to be kept for unprotected PDFs")
	}
	object, ok := env.objects.objects[stored.ObjectKey]
	if !ok || !bytes.Equal(object.Data, plainPDF()) {
		t.Fatal("expected original bytes in object storage")
	}
	if len(env.search.indexed) != 1 || env.search.indexed[0] != id {
		t.Fatalf("expected document indexed, got %v", env.search.indexed)
	}

	rr, payload = doJSON(t, env, http.MethodGet, "/api/documents/"+id+"/history", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 history, got %d body=%s", rr.Code, rr.Body.String())
	}
	if entries, _ := payload["history"].([]any); len(entries) != 1 {
		t.Fatalf("expected one history entry, got %v", payload["history"])
	}
}

func TestUploadProtectedPDFPasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "usr_1", "member")

	rr, payload := uploadFile(t, env, token, "secret.pdf", protectedPDF(), map[string]string{"language": "ta"})
	if rr.Code != http.StatusLocked {
		t.Fatalf("expected 423, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload["code"] != "PASSWORD_REQUIRED" {
		t.Fatalf("unexpected code %v", payload["code"])
	}
	pendingID, _ := details(t, payload)["pendingId"].(string)
	if pendingID == "" {
		t.Fatal("expected pendingId")
	}
	if env.pipeline.runs != 1 || env.pipeline.analyzed != 0 {
		t.Fatalf("expected one run stopped before analysis, got %d runs and %d analyses", env.pipeline.runs, env.pipeline.analyzed)
	}

	rr, payload = doJSON(t, env, http.MethodPost, "/api/documents", token, fmt.Sprintf(`{"pendingId":%q,"password":"wrong"}`, pendingID))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload["code"] != "INVALID_PASSWORD" || payload["error"] != analysis.MessageInvalidPassword {
		t.Fatalf("unexpected invalid password payload %v", payload)
	}
	retry := details(t, payload)
	if retry["pendingId"] != pendingID {
		t.Fatalf("expected pending upload kept, got %v", retry)
	}
	if retry["attemptsRemaining"] != float64(session.MaxPasswordAttempts-1) {
		t.Fatalf("unexpected attempts remaining %v", retry["attemptsRemaining"])
	}

	rr, payload = doJSON(t, env, http.MethodPost, "/api/documents", token, fmt.Sprintf(`{"pendingId":%q,"password":%q}`, pendingID, testPassword))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload["summary"] != "Summary in ta" {
		t.Fatalf("expected pending language reused, got %v", payload["summary"])
	}
	if payload["isProtected"] != true {
		t.Fatal("expected protected flag")
	}
	stored := env.store.documents[payload["id"].(string)]
	if stored.ContentText != "" {
		t.Fatal("decrypted text must not be persisted")
	}
	if !bytes.Equal(env.objects.objects[stored.ObjectKey].Data, protectedPDF()) {
		t.Fatal("expected the still-encrypted original in object storage")
	}

	rr, _ = doJSON(t, env, http.MethodPost, "/api/documents", token, fmt.Sprintf(`{"pendingId":%q,"password":%q}`, pendingID, testPassword))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected pending upload consumed, got %d", rr.Code)
	}
}

func TestUploadWrongPasswordOnFirstAttemptCreatesPending(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "usr_1", "member")

	rr, payload := uploadFile(t, env, token, "secret.pdf", protectedPDF(), map[string]string{"password": "nope"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if id, _ := details(t, payload)["pendingId"].(string); id == "" {
		t.Fatal("expected a pending upload to retry with")
	}
}

func TestPendingUploadIsOwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	owner := env.login(t, "usr_1", "member")
	other := env.login(t, "usr_2", "member")

	_, payload := uploadFile(t, env, owner, "secret.pdf", protectedPDF(), nil)
	pendingID := details(t, payload)["pendingId"].(string)

	rr, _ := doJSON(t, env, http.MethodPost, "/api/documents", other, fmt.Sprintf(`{"pendingId":%q,"password":%q}`, pendingID, testPassword))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another owner's pending upload, got %d", rr.Code)
	}

	rr, _ = doJSON(t, env, http.MethodDelete, "/api/documents/pending/"+pendingID, owner, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected cancel to succeed, got %d", rr.Code)
	}
	rr, _ = doJSON(t, env, http.MethodPost, "/api/documents", owner, fmt.Sprintf(`{"pendingId":%q,"password":%q}`, pendingID, testPassword))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected cancelled upload gone, got %d", rr.Code)
	}
}

func TestUploadMapsAnalysisErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"service unavailable", &analysis.Error{Kind: analysis.ErrServiceUnavailable, Cause: fmt.Errorf("provider said: key revoked")}, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", analysis.MessageServiceUnavailable},
		{"rate limited", &analysis.Error{Kind: analysis.ErrRateLimited}, http.StatusTooManyRequests, "RATE_LIMITED", analysis.MessageRateLimited},
		{"unsupported media", &analysis.Error{Kind: analysis.ErrUnsupportedMedia}, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA", analysis.MessageUnsupportedMedia},
		{"corrupt", &analysis.Error{Kind: analysis.ErrPasswordProtectedOrCorrupt}, http.StatusUnprocessableEntity, "PASSWORD_PROTECTED_OR_CORRUPT", analysis.MessagePasswordProtectedOrCorrupt},
		{"failed", &analysis.Error{Kind: analysis.ErrAnalysisFailed}, http.StatusBadGateway, "ANALYSIS_FAILED", analysis.MessageAnalysisFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.pipeline.runFn = func(context.Context, document.File, string, string) (pipeline.Outcome, error) {
				return pipeline.Outcome{}, tc.err
			}
			token := env.login(t, "usr_1", "member")

			rr, payload := uploadFile(t, env, token, "lease.pdf", plainPDF(), nil)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d body=%s", tc.status, rr.Code, rr.Body.String())
			}
			if payload["code"] != tc.code || payload["error"] != tc.message {
				t.Fatalf("unexpected payload %v", payload)
			}
			if strings.Contains(rr.Body.String(), "key revoked") {
				t.Fatal("provider message leaked to the client")
			}
			if len(env.store.documents) != 0 {
				t.Fatal("expected nothing persisted")
			}
		})
	}
}

func TestUploadRejectsEmptyAndUnsupportedFiles(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "usr_1", "member")

	rr, payload := uploadFile(t, env, token, "empty.pdf", []byte{}, nil)
	if rr.Code != http.StatusUnprocessableEntity || payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected validation error, got %d %v", rr.Code, payload)
	}

	rr, payload = uploadFile(t, env, token, "archive.zip", []byte("PK\x03\x04 zip bytes"), nil)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d %v", rr.Code, payload)
	}

	rr, _ = uploadFile(t, env, token, "", nil, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without file, got %d", rr.Code)
	}
	if env.pipeline.runs != 0 {
		t.Fatal("expected no analysis for rejected uploads")
	}
}

func TestViewerCannotUploadButCanRead(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "usr_v", "viewer")

	rr, payload := uploadFile(t, env, token, "lease.pdf", plainPDF(), nil)
	if rr.Code != http.StatusForbidden || payload["code"] != "FORBIDDEN" {
		t.Fatalf("expected 403, got %d %v", rr.Code, payload)
	}
	rr, payload = doJSON(t, env, http.MethodGet, "/api/documents", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if docs, _ := payload["documents"].([]any); len(docs) != 0 {
		t.Fatalf("expected empty list, got %v", docs)
	}
}

func TestDocumentsAreOwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	owner := env.login(t, "usr_1", "member")
	other := env.login(t, "usr_2", "member")

	_, payload := uploadFile(t, env, owner, "lease.pdf", plainPDF(), nil)
	id := payload["id"].(string)

	for _, path := range []string{"/api/documents/" + id, "/api/documents/" + id + "/file", "/api/documents/" + id + "/insights", "/api/documents/" + id + "/history"} {
		rr, _ := doJSON(t, env, http.MethodGet, path, other, "")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404 for another owner, got %d", path, rr.Code)
		}
	}
	rr, _ := doJSON(t, env, http.MethodDelete, "/api/documents/"+id, other, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting another owner's document, got %d", rr.Code)
	}
	if _, ok := env.store.documents[id]; !ok {
		t.Fatal("document must survive another owner's delete")
	}
}

func TestDocumentFileAndDelete(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "usr_1", "member")
	_, payload := uploadFile(t, env, token, "lease.pdf", plainPDF(), nil)
	id := payload["id"].(string)

	rr, _ := doJSON(t, env, http.MethodGet, "/api/documents/"+id+"/file", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != document.MIMEPDF {
		t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "lease.pdf") {
		t.Fatalf("unexpected disposition %q", rr.Header().Get("Content-Disposition"))
	}
	if !bytes.Equal(rr.Body.Bytes(), plainPDF()) {
		t.Fatal("expected original bytes")
	}

	key := env.store.documents[id].ObjectKey
	rr, _ = doJSON(t, env, http.MethodDelete, "/api/documents/"+id, token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if _, ok := env.objects.objects[key]; ok {
		t.Fatal("expected stored file removed")
	}
	if len(env.search.deleted) != 1 || env.search.deleted[0] != id {
		t.Fatalf("expected index removal, got %v", env.search.deleted)
	}
	rr, _ = doJSON(t, env, http.MethodGet, "/api/documents/"+id, token, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestReanalyzeRecordsHistoryWithChanges(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "usr_1", "member")
	_, payload := uploadFile(t, env, token, "lease.pdf", plainPDF(), map[string]string{"language": "en"})
	id := payload["id"].(string)

	rr, payload := doJSON(t, env, http.MethodPost, "/api/documents/"+id+"/reanalyze", token, `{"language":"hi"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload["language"] != "hi" || payload["summary"] != "Summary in hi" {
		t.Fatalf("unexpected reanalysis %v", payload)
	}

	rr, payload = doJSON(t, env, http.MethodGet, "/api/documents/"+id+"/history", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	entries, _ := payload["history"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected two runs, got %v", payload["history"])
	}
	first := entries[1].(map[string]any)["hash"].(string)

	rr, payload = doJSON(t, env, http.MethodGet, "/api/documents/"+id+"/history/"+first, token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	snapshot := payload["analysis"].(map[string]any)
	if snapshot["summary"] != "Summary in en" {
		t.Fatalf("unexpected snapshot %v", snapshot)
	}
	changes, _ := payload["changes"].([]any)
	fields := map[string]bool{}
	for _, change := range changes {
		fields[change.(map[string]any)["field"].(string)] = true
	}
	if !fields["summary"] || !fields["language"] {
		t.Fatalf("expected summary and language changes, got %v", changes)
	}

	rr, _ = doJSON(t, env, http.MethodGet, "/api/documents/"+id+"/history/0000000", token, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown hash, got %d", rr.Code)
	}
}

func TestReanalyzeProtectedNeedsPassword(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "usr_1", "member")
	_, payload := uploadFile(t, env, token, "secret.pdf", protectedPDF(), map[string]string{"password": testPassword})
	id := payload["id"].(string)

	rr, payload := doJSON(t, env, http.MethodPost, "/api/documents/"+id+"/reanalyze", token, `{"language":"hi"}`)
	if rr.Code != http.StatusLocked || payload["code"] != "PASSWORD_REQUIRED" {
		t.Fatalf("expected 423, got %d %v", rr.Code, payload)
	}
	rr, payload = doJSON(t, env, http.MethodPost, "/api/documents/"+id+"/reanalyze", token, `{"language":"hi","password":"bad"}`)
	if rr.Code != http.StatusUnprocessableEntity || payload["code"] != "INVALID_PASSWORD" {
		t.Fatalf("expected 422, got %d %v", rr.Code, payload)
	}
	rr, _ = doJSON(t, env, http.MethodPost, "/api/documents/"+id+"/reanalyze", token, fmt.Sprintf(`{"password":%q}`, testPassword))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestInsightsAndExport(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "usr_1", "member")
	_, payload := uploadFile(t, env, token, "lease.pdf", plainPDF(), nil)
	id := payload["id"].(string)

	rr, payload := doJSON(t, env, http.MethodGet, "/api/documents/"+id+"/insights", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if payload["isLegal"] != true || payload["authenticity"] != "real" || payload["source"] != "model" {
		t.Fatalf("unexpected insights %v", payload)
	}

	rr, _ = doJSON(t, env, http.MethodGet, "/api/documents/"+id+"/export?format=pdf&includeChat=true", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
	req := env.export.requests[0]
	if req.OwnerID != "usr_1" || req.DocumentID != id || !req.IncludeChat {
		t.Fatalf("unexpected export request %+v", req)
	}

	rr, payload = doJSON(t, env, http.MethodGet, "/api/documents/"+id+"/export?format=odt", token, "")
	if rr.Code != http.StatusUnprocessableEntity || payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected validation error, got %d %v", rr.Code, payload)
	}
}

func TestSearchIsScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "usr_1", "member")

	rr, payload := doJSON(t, env, http.MethodGet, "/api/search?q=deposit&limit=5", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if payload["total"] != float64(1) {
		t.Fatalf("unexpected search payload %v", payload)
	}
	q := env.search.queries[0]
	if q.OwnerID != "usr_1" || q.Text != "deposit" || q.Limit != 5 {
		t.Fatalf("unexpected query %+v", q)
	}

	rr, _ = doJSON(t, env, http.MethodGet, "/api/search?q=x&limit=abc", token, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestReindexRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	member := env.login(t, "usr_1", "member")
	admin := env.login(t, "usr_a", "admin")

	rr, _ := doJSON(t, env, http.MethodPost, "/api/admin/search/reindex", member, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	rr, payload := doJSON(t, env, http.MethodPost, "/api/admin/search/reindex", admin, "")
	if rr.Code != http.StatusServiceUnavailable || payload["code"] != "SEARCH_UNAVAILABLE" {
		t.Fatalf("expected 503 without a record loader, got %d %v", rr.Code, payload)
	}
}

func TestDownloadLinkIsOwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	owner := env.login(t, "usr_1", "member")
	other := env.login(t, "usr_2", "viewer")
	_, payload := uploadFile(t, env, owner, "lease.pdf", plainPDF(), nil)
	documentID := payload["id"].(string)

	rr, payload := doJSON(t, env, http.MethodGet, "/api/documents/"+documentID+"/link", owner, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	link, _ := payload["url"].(string)
	if !strings.HasPrefix(link, "https://objects.test/usr_1/") || payload["expiresAt"] == nil {
		t.Fatalf("unexpected link payload %v", payload)
	}

	rr, _ = doJSON(t, env, http.MethodGet, "/api/documents/"+documentID+"/link", other, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another owner, got %d", rr.Code)
	}
}
