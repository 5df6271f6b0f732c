package whatsapp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(env *testEnv) http.Handler {
	svc := env.svc.(*service)
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(env.svc, svc.directory, "+85296256886", discardLogger()))
	return r
}

func postForm(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func assertSuccess(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["success"] != true {
		t.Errorf("expected success:true, got %v", resp)
	}
}

func TestWebhook_TwilioForm(t *testing.T) {
	env := newTestEnv(t, defaultBindings())
	h := newTestRouter(env)

	rr := postForm(t, h, url.Values{"From": {"whatsapp:+447745824688"}, "Body": {"hello"}})
	assertSuccess(t, rr)

	if len(env.outbound.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(env.outbound.sent))
	}
	if s := env.outbound.sent[0]; s.To != "+447745824688" || s.Text != "Hi there!" {
		t.Errorf("unexpected send %+v", s)
	}
}

func TestWebhook_LowercaseFormFields(t *testing.T) {
	env := newTestEnv(t, defaultBindings())
	h := newTestRouter(env)

	assertSuccess(t, postForm(t, h, url.Values{"from": {"+447745824688"}, "body": {"hi"}}))
	if len(env.assistant.calls) != 1 || env.assistant.calls[0].Text != "hi" {
		t.Errorf("unexpected assistant calls %+v", env.assistant.calls)
	}
}

func TestWebhook_MissingBodyStillAcknowledged(t *testing.T) {
	env := newTestEnv(t, defaultBindings())
	h := newTestRouter(env)

	assertSuccess(t, postForm(t, h, url.Values{"From": {"whatsapp:+447745824688"}}))
	if len(env.outbound.sent) != 0 {
		t.Errorf("expected no sends, got %v", env.outbound.sent)
	}
}

func TestWebhook_JSONBatch(t *testing.T) {
	env := newTestEnv(t, defaultBindings())
	h := newTestRouter(env)

	body := `{"messages":[
		{"from":"+447745824688","body":"one"},
		{"from":"+10000000000","body":"stranger"},
		{"from":"+85294689284","body":"unbound"}
	]}`
	assertSuccess(t, postJSON(t, h, body))

	if len(env.assistant.calls) != 1 {
		t.Errorf("expected one assistant call, got %d", len(env.assistant.calls))
	}
	if len(env.outbound.sent) != 2 {
		t.Fatalf("expected two sends (reply + error notice), got %d", len(env.outbound.sent))
	}
	byRecipient := map[string]string{}
	for _, s := range env.outbound.sent {
		byRecipient[s.To] = s.Text
	}
	if byRecipient["+447745824688"] != "Hi there!" || byRecipient["+85294689284"] != GenericErrorText {
		t.Errorf("unexpected sends %v", byRecipient)
	}
	if len(env.sink.events) != 3 {
		t.Errorf("expected one event per message, got %d", len(env.sink.events))
	}
}

func TestWebhook_JSONSingleCapitalized(t *testing.T) {
	env := newTestEnv(t, defaultBindings())
	h := newTestRouter(env)

	assertSuccess(t, postJSON(t, h, `{"From":"whatsapp:+447745824688","Body":"hello"}`))
	if len(env.outbound.sent) != 1 {
		t.Errorf("expected one send, got %d", len(env.outbound.sent))
	}
}

func TestWebhook_MalformedJSON(t *testing.T) {
	env := newTestEnv(t, defaultBindings())
	h := newTestRouter(env)

	rr := postJSON(t, h, `{"messages": [`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["error"] == "" {
		t.Error("expected an error message")
	}
	if len(env.assistant.calls) != 0 {
		t.Error("nothing should be handled for a malformed payload")
	}
}

func TestWebhook_EmptyJSONAcknowledged(t *testing.T) {
	env := newTestEnv(t, defaultBindings())
	assertSuccess(t, postJSON(t, newTestRouter(env), ""))
}

func TestWebhook_ReplayIsNotDeduplicated(t *testing.T) {
	env := newTestEnv(t, defaultBindings())
	h := newTestRouter(env)
	form := url.Values{"From": {"whatsapp:+447745824688"}, "Body": {"hello"}}

	assertSuccess(t, postForm(t, h, form))
	assertSuccess(t, postForm(t, h, form))

	if len(env.assistant.calls) != 2 || len(env.outbound.sent) != 2 {
		t.Errorf("expected two independent conversations, got %d calls and %d sends",
			len(env.assistant.calls), len(env.outbound.sent))
	}
	if env.sink.events[0].RequestID == env.sink.events[1].RequestID {
		t.Error("replayed payloads must get distinct request ids")
	}
}

func TestStatusEndpoints(t *testing.T) {
	env := newTestEnv(t, defaultBindings())
	h := newTestRouter(env)

	get := func(path string) map[string]any {
		t.Helper()
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, rr.Code)
		}
		var out map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		return out
	}

	health := get("/health")
	if health["status"] != "OK" || health["agents"] != float64(2) {
		t.Errorf("unexpected health %v", health)
	}

	agents := get("/agents")
	if agents["botNumber"] != "+85296256886" {
		t.Errorf("unexpected botNumber %v", agents["botNumber"])
	}
	list, _ := agents["agents"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 agents, got %v", agents["agents"])
	}
	first, _ := list[0].(map[string]any)
	if first["id"] != "himson" || first["name"] != "Himson" || first["phone"] != "+447745824688" {
		t.Errorf("unexpected first agent %v", first)
	}

	root := get("/")
	if root["version"] != Version || root["agents"] != float64(2) || root["status"] != "OK" {
		t.Errorf("unexpected root %v", root)
	}
}
