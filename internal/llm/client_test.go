package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/cognicore/supportlens/pkg/supportlens/conversation"
	"github.com/cognicore/supportlens/pkg/supportlens/records"
)

type roundTrip func(*http.Request) *http.Response

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req), nil
}

func jsonResponse(status int, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     header,
	}
}

func newTestClient(t *testing.T, rt roundTrip) *Client {
	t.Helper()
	client, err := New(Config{
		APIKey:     "test-key",
		Model:      "gpt-test",
		BaseURL:    "https://api.test/v1",
		HTTPClient: &http.Client{Transport: rt},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestExtractInquiry(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) *http.Response {
		if req.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(req.Body)
		if !strings.Contains(string(body), "환불") {
			t.Errorf("expected conversation text in payload")
		}
		return jsonResponse(200, `{"choices":[{"message":{"role":"assistant","content":" \"환불은 언제 되나요?\" "}}]}`)
	})

	conv := &conversation.Conversation{
		ID: "c1",
		Messages: []conversation.Message{
			{Role: conversation.RoleCustomer, Body: "환불 언제 돼요"},
		},
	}
	out, err := client.ExtractInquiry(context.Background(), conv)
	if err != nil {
		t.Fatalf("ExtractInquiry: %v", err)
	}
	if out != "환불은 언제 되나요?" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestSummarizeTag(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) *http.Response {
		body, _ := io.ReadAll(req.Body)
		if !strings.Contains(string(body), "Category: billing") {
			t.Errorf("expected tag in payload")
		}
		content, _ := json.Marshal("```json\n{\"faq\": \"환불 시점 문의\", \"keywords\": [\"환불\"]}\n```")
		return jsonResponse(200, `{"choices":[{"message":{"role":"assistant","content":`+string(content)+`}}]}`)
	})

	sum, err := client.SummarizeTag(context.Background(), "billing", []records.Record{
		{Tag: "billing", Text: "환불은 언제 되나요?", ConversationID: "c1"},
	})
	if err != nil {
		t.Fatalf("SummarizeTag: %v", err)
	}
	if sum.FAQText != "환불 시점 문의" || len(sum.Keywords) != 1 || sum.Keywords[0] != "환불" {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestSummarizeTagRejectsProse(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"choices":[{"message":{"role":"assistant","content":"Customers ask about refunds."}}]}`)
	})
	if _, err := client.SummarizeTag(context.Background(), "billing", nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestChatError(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) *http.Response {
		return jsonResponse(400, `{"error":{"message":"bad","type":"invalid_request_error"}}`)
	})
	if _, err := client.Chat(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error")
	}
}

func TestChatEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"choices":[]}`)
	})
	if _, err := client.Chat(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestNewRequiresModelAndEndpoint(t *testing.T) {
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Error("missing model should fail")
	}
	if _, err := New(Config{Model: "m"}); err == nil {
		t.Error("missing key and base URL should fail")
	}
}

func TestStripFence(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{}\n```":            `{}`,
		`  {"a":2} `:              `{"a":2}`,
	}
	for in, want := range tests {
		if got := stripFence(in); got != want {
			t.Errorf("stripFence(%q) = %q, want %q", in, got, want)
		}
	}
}
