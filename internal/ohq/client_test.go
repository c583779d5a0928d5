package ohq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare host gets https", "ohq.example.edu", "https://ohq.example.edu", false},
		{"explicit scheme kept", "http://localhost:8000", "http://localhost:8000", false},
		{"path stripped", "https://ohq.example.edu/some/path", "https://ohq.example.edu", false},
		{"whitespace trimmed", "  ohq.example.edu  ", "https://ohq.example.edu", false},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBaseURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseBaseURL(%q) error = nil, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBaseURL(%q) error = %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("parseBaseURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, "test-token")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestListQuestions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/courses/3/queues/7/questions/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]Question{
			{ID: 1, QueueID: 7, Status: StatusActive, Text: "help"},
			{ID: 2, QueueID: 7, Status: StatusStarted, Text: "also help"},
		})
	})

	questions, err := client.ListQuestions(context.Background(), 3, 7)
	if err != nil {
		t.Fatalf("ListQuestions() error = %v", err)
	}
	if len(questions) != 2 || questions[0].ID != 1 || questions[1].Status != StatusStarted {
		t.Errorf("ListQuestions() = %+v", questions)
	}
}

func TestUpdateQuestionSendsPatch(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Question{ID: 5, Status: StatusStarted})
	})

	status := StatusStarted
	q, err := client.UpdateQuestion(context.Background(), 3, 7, 5, QuestionPatch{Status: &status})
	if err != nil {
		t.Fatalf("UpdateQuestion() error = %v", err)
	}
	if q.Status != StatusStarted {
		t.Errorf("status = %s, want STARTED", q.Status)
	}
	if gotBody["status"] != "STARTED" {
		t.Errorf("patch body = %v, want status STARTED", gotBody)
	}
	if _, ok := gotBody["text"]; ok {
		t.Error("patch body carries an unset field; partial updates must omit them")
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"detail object", http.StatusBadRequest, `{"detail": "Queue is closed"}`, "Queue is closed"},
		{"plain text body", http.StatusConflict, `somebody else got there first`, "somebody else got there first"},
		{"empty body", http.StatusForbidden, ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.GetQueue(context.Background(), 1, 2)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("GetQueue() error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", apiErr.Detail, tt.wantDetail)
			}
		})
	}
}

func TestGetPositionErrorReportsUnknown(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	pos, err := client.GetPosition(context.Background(), 1, 2, 3)
	if err == nil {
		t.Fatal("GetPosition() error = nil, want error")
	}
	if pos.Position != -1 {
		t.Errorf("Position = %d, want -1 on error", pos.Position)
	}
}

func TestClearQueue(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodPost || r.URL.Path != "/api/courses/1/queues/2/clear/" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.ClearQueue(context.Background(), 1, 2); err != nil {
		t.Fatalf("ClearQueue() error = %v", err)
	}
	if !called {
		t.Error("server never saw the request")
	}
}

func TestMassInviteJoinsEmails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Emails string `json:"emails"`
			Kind   string `json:"kind"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Emails != "a@example.edu,b@example.edu" || body.Kind != "STUDENT" {
			t.Errorf("body = %+v", body)
		}
		w.WriteHeader(http.StatusCreated)
	})

	err := client.MassInvite(context.Background(), 1, []string{"a@example.edu", "b@example.edu"}, "STUDENT")
	if err != nil {
		t.Fatalf("MassInvite() error = %v", err)
	}
}

func TestCurrentUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/accounts/me/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Profile{
			User: User{ID: 9, Username: "prof"},
			Memberships: []Membership{
				{CourseID: 3, Kind: "PROFESSOR"},
				{CourseID: 4, Kind: "STUDENT"},
			},
		})
	})

	profile, err := client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if !profile.IsStaff(3) {
		t.Error("IsStaff(3) = false for a professor membership")
	}
	if profile.IsStaff(4) {
		t.Error("IsStaff(4) = true for a student membership")
	}
	if profile.IsStaff(99) {
		t.Error("IsStaff(99) = true with no membership")
	}
}
