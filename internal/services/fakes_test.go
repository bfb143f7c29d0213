package services

import (
	"context"
	"sync"
	"time"

	"schoolbox-be/internal/models"

	"google.golang.org/api/gmail/v1"
)

// fakeEmailStore keeps everything in a map keyed by messageId and records
// the mutations the code under test performs.
type fakeEmailStore struct {
	mu          sync.Mutex
	emails      map[string]*models.Email
	saveErr     error
	saveErrOnce bool
	findErr     error
	saves       int
	actions     []models.AutoAction
	errEntries  []models.ErrorEntry
	flags       map[string]map[string]bool
	responses   map[string]models.ResponseInfo
}

func newFakeEmailStore() *fakeEmailStore {
	return &fakeEmailStore{
		emails:    make(map[string]*models.Email),
		flags:     make(map[string]map[string]bool),
		responses: make(map[string]models.ResponseInfo),
	}
}

func (s *fakeEmailStore) FindByMessageID(ctx context.Context, messageID string) (*models.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	e, ok := s.emails[messageID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *fakeEmailStore) ListUnprocessed(ctx context.Context, limit int64) ([]*models.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Email
	for _, e := range s.emails {
		if !e.AIProcessing.Processed && int64(len(out)) < limit {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeEmailStore) Save(ctx context.Context, email *models.Email) (*models.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		err := s.saveErr
		if s.saveErrOnce {
			s.saveErr = nil
		}
		return nil, err
	}
	if existing, ok := s.emails[email.MessageID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *email
	s.emails[email.MessageID] = &cp
	return email, nil
}

func (s *fakeEmailStore) MarkProcessed(ctx context.Context, messageID string, analysis *models.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.emails[messageID]
	if !ok || e.AIProcessing.Processed {
		return nil
	}
	now := time.Now()
	e.AIProcessing.Processed = true
	e.AIProcessing.ProcessedAt = &now
	e.AIProcessing.Category = analysis.Category
	e.AIProcessing.Priority = analysis.Priority
	return nil
}

func (s *fakeEmailStore) AppendError(ctx context.Context, messageID string, entry models.ErrorEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errEntries = append(s.errEntries, entry)
	return nil
}

func (s *fakeEmailStore) RecordAutoAction(ctx context.Context, messageID string, action models.AutoAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

func (s *fakeEmailStore) UpdateFlags(ctx context.Context, messageID string, flags map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.flags[messageID]
	if !ok {
		set = make(map[string]bool)
		s.flags[messageID] = set
	}
	for name, v := range flags {
		set[name] = v
	}
	return nil
}

func (s *fakeEmailStore) SetResponse(ctx context.Context, messageID string, info models.ResponseInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[messageID] = info
	return nil
}

func (s *fakeEmailStore) actionNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.actions))
	for i, a := range s.actions {
		names[i] = a.Action
	}
	return names
}

type fakeWaitlistStore struct {
	mu      sync.Mutex
	entries []*models.WaitlistEntry
	err     error
}

func (w *fakeWaitlistStore) Create(ctx context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	cp := *entry
	cp.Position = len(w.entries) + 1
	w.entries = append(w.entries, &cp)
	return &cp, nil
}

type fakeInbox struct {
	mu        sync.Mutex
	refs      []MessageRef
	messages  map[string]*gmail.Message
	fetchErr  map[string]error
	labels    map[string][]string
	important []string
	processed []string
	labelErr  error
}

func newFakeInbox() *fakeInbox {
	return &fakeInbox{
		messages: make(map[string]*gmail.Message),
		fetchErr: make(map[string]error),
		labels:   make(map[string][]string),
	}
}

func (f *fakeInbox) ListRecent(ctx context.Context, window time.Duration, maxResults int64) ([]MessageRef, error) {
	return f.refs, nil
}

func (f *fakeInbox) Fetch(ctx context.Context, id string) (*gmail.Message, error) {
	if err := f.fetchErr[id]; err != nil {
		return nil, err
	}
	msg, ok := f.messages[id]
	if !ok {
		return nil, providerErr("message %s not found", id)
	}
	return msg, nil
}

func (f *fakeInbox) ApplyLabel(ctx context.Context, messageID, labelName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.labelErr != nil {
		return f.labelErr
	}
	f.labels[messageID] = append(f.labels[messageID], labelName)
	return nil
}

func (f *fakeInbox) MarkImportant(ctx context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.important = append(f.important, messageID)
	return nil
}

func (f *fakeInbox) MarkProcessed(ctx context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, messageID)
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []*OutboundEmail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, out *OutboundEmail) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, out)
	return "sent-" + out.To, nil
}

// fakeClassifier returns a fixed analysis, or per-message errors.
type fakeClassifier struct {
	mu       sync.Mutex
	analysis *models.Analysis
	errFor   map[string]error
	calls    []string
}

func (c *fakeClassifier) Classify(ctx context.Context, email *models.Email) (*models.Analysis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, email.MessageID)
	if err := c.errFor[email.MessageID]; err != nil {
		return nil, err
	}
	if c.analysis != nil {
		cp := *c.analysis
		return &cp, nil
	}
	return &models.Analysis{
		Category:  models.CategoryGeneral,
		Priority:  models.PriorityNormal,
		Sentiment: models.SentimentNeutral,
	}, nil
}

func plainMessage(id, from, subject, body string) *gmail.Message {
	return &gmail.Message{
		Id:       id,
		ThreadId: "thread-" + id,
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: from},
				{Name: "Subject", Value: subject},
			},
			Body: &gmail.MessagePartBody{Data: b64(body)},
		},
	}
}
