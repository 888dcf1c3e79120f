// Package mockapi serves a conference speaker page and an OpenAI-compatible
// chat completions endpoint so the pipeline can run end to end without network
// access or an API key.
package mockapi

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/shpitdev/conference-outreach-pipeline/internal/speaker"
)

// DefaultReply is returned for prompts that match no configured company.
const DefaultReply = "Category: Other\nCompany Size: Unknown\nReasoning: Offline mock reply without company specific data."

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
}

// Server implements the two upstream surfaces the pipeline talks to.
type Server struct {
	mu       sync.Mutex
	speakers []speaker.Speaker
	replies  map[string]string
	calls    []Call
	prompts  []string
	failures []int

	expectedAuthorization string
}

// New constructs a mock server that lists speakers on its speaker page.
func New(speakers []speaker.Speaker) *Server {
	return &Server{
		speakers: append([]speaker.Speaker(nil), speakers...),
		replies:  make(map[string]string),
	}
}

// RequireBearerToken enforces that completion requests carry the token.
// If token is empty, authorization is not enforced.
func (s *Server) RequireBearerToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token = strings.TrimSpace(token)
	if token == "" {
		s.expectedAuthorization = ""
		return
	}
	s.expectedAuthorization = "Bearer " + token
}

// SetReply answers any prompt mentioning company with reply.
func (s *Server) SetReply(company, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[company] = reply
}

// FailNext makes the next n completion requests fail with status.
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.failures = append(s.failures, status)
	}
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/speakers", s.handleSpeakers)
	mux.HandleFunc("/v1/chat/completions", s.handleChat)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Prompts returns every prompt received by the completions endpoint.
func (s *Server) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	expected := s.expectedAuthorization
	s.mu.Unlock()

	if expected == "" {
		return true
	}
	if r.Header.Get("Authorization") != expected {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

var speakerPage = template.Must(template.New("speakers").Parse(`<!DOCTYPE html>
<html><head><title>All Speakers</title></head><body>
<div class="speaker-grid">
{{- range .}}
  <div class="speaker-grid-details">
    <h3>{{.Name}}</h3>
    <p class="speaker-job">{{.Job}}</p>
  </div>
{{- end}}
</div>
</body></html>
`))

type pageEntry struct {
	Name string
	Job  string
}

func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	entries := make([]pageEntry, 0, len(s.speakers))
	for _, sp := range s.speakers {
		job := sp.Title
		if sp.Company != "" {
			job = sp.Title + " at " + sp.Company
		}
		entries = append(entries, pageEntry{Name: sp.Name, Job: job})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := speakerPage.Execute(w, entries); err != nil {
		http.Error(w, fmt.Sprintf("render: %v", err), http.StatusInternalServerError)
	}
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type chatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if !s.authorize(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Model) == "" || len(req.Messages) == 0 {
		http.Error(w, "model and messages are required", http.StatusBadRequest)
		return
	}
	prompt := req.Messages[len(req.Messages)-1].Content

	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	status := 0
	if len(s.failures) > 0 {
		status = s.failures[0]
		s.failures = s.failures[1:]
	}
	reply := s.replyLocked(prompt)
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, fmt.Sprintf(`{"error":{"message":"mock failure %d"}}`, status), status)
		return
	}

	var choice chatChoice
	choice.Message.Role = "assistant"
	choice.Message.Content = reply
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model":   req.Model,
		"choices": []chatChoice{choice},
	})
}

// replyLocked picks the reply for the longest configured company name found in
// the prompt, so "Acme Build Group" wins over "Acme".
func (s *Server) replyLocked(prompt string) string {
	companies := make([]string, 0, len(s.replies))
	for c := range s.replies {
		if strings.Contains(prompt, c) {
			companies = append(companies, c)
		}
	}
	if len(companies) == 0 {
		return DefaultReply
	}
	sort.Slice(companies, func(i, j int) bool {
		if len(companies[i]) != len(companies[j]) {
			return len(companies[i]) > len(companies[j])
		}
		return companies[i] < companies[j]
	})
	return s.replies[companies[0]]
}
