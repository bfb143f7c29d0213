package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"schoolbox-be/internal/models"

	"go.uber.org/zap"
)

func newTestPipeline(inbox *fakeInbox, classifier *fakeClassifier, emails *fakeEmailStore) *Pipeline {
	router := NewActionRouter(emails, &fakeWaitlistStore{}, inbox, &fakeMailer{}, time.Second, zap.NewNop())
	return NewPipeline(inbox, classifier, emails, router, zap.NewNop(), PipelineConfig{
		PollWindow:      24 * time.Hour,
		MaxBatchSize:    25,
		Workers:         3,
		ProviderTimeout: time.Second,
	})
}

func TestProcessMessageSkipsAlreadyProcessed(t *testing.T) {
	emails := newFakeEmailStore()
	emails.emails["msg-1"] = &models.Email{
		MessageID:    "msg-1",
		AIProcessing: models.AIProcessing{Processed: true},
	}
	inbox := newFakeInbox()
	classifier := &fakeClassifier{}
	p := newTestPipeline(inbox, classifier, emails)

	skipped, err := p.ProcessMessage(context.Background(), "msg-1")
	if err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	if !skipped {
		t.Error("already-processed message was not skipped")
	}
	if len(classifier.calls) != 0 {
		t.Errorf("classifier called %d times for a processed message", len(classifier.calls))
	}
	if emails.saves != 0 {
		t.Errorf("saves = %d, want 0", emails.saves)
	}
	// The provider side is still brought in line with the store.
	if len(inbox.processed) != 1 {
		t.Errorf("provider processed marks = %v", inbox.processed)
	}
}

func TestProcessMessageFullPass(t *testing.T) {
	emails := newFakeEmailStore()
	inbox := newFakeInbox()
	inbox.messages["msg-2"] = plainMessage("msg-2", "Pat Parent <pat@example.com>", "Question about hours", "What time do you open?")
	classifier := &fakeClassifier{analysis: &models.Analysis{
		Category:  models.CategoryParentQuestion,
		Priority:  models.PriorityNormal,
		Sentiment: models.SentimentNeutral,
	}}
	p := newTestPipeline(inbox, classifier, emails)

	skipped, err := p.ProcessMessage(context.Background(), "msg-2")
	if err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	if skipped {
		t.Error("new message reported as skipped")
	}

	stored := emails.emails["msg-2"]
	if stored == nil {
		t.Fatal("email was not persisted")
	}
	if !stored.AIProcessing.Processed {
		t.Error("email not marked processed")
	}
	if stored.AIProcessing.Category != models.CategoryParentQuestion {
		t.Errorf("category = %q", stored.AIProcessing.Category)
	}
	if len(inbox.labels["msg-2"]) != 1 {
		t.Errorf("labels = %v, want one category label", inbox.labels["msg-2"])
	}
	if len(inbox.processed) != 1 {
		t.Errorf("provider processed marks = %v", inbox.processed)
	}
}

func TestProcessMessagePersistsBeforeClassification(t *testing.T) {
	emails := newFakeEmailStore()
	inbox := newFakeInbox()
	inbox.messages["msg-3"] = plainMessage("msg-3", "a@example.com", "Hello", "body")
	classifier := &fakeClassifier{errFor: map[string]error{
		"msg-3": classificationErr("model returned garbage"),
	}}
	p := newTestPipeline(inbox, classifier, emails)

	_, err := p.ProcessMessage(context.Background(), "msg-3")
	if err == nil {
		t.Fatal("classification failure should surface as an error")
	}
	if ErrorKind(err) != KindClassification {
		t.Errorf("kind = %q, want %q", ErrorKind(err), KindClassification)
	}

	stored := emails.emails["msg-3"]
	if stored == nil {
		t.Fatal("email must be persisted before the model call")
	}
	if stored.AIProcessing.Processed {
		t.Error("failed classification must leave the email unprocessed")
	}
	if len(emails.errEntries) == 0 {
		t.Error("classification failure not appended to errors")
	}
}

func TestProcessMessageRetriesFromStoredRecord(t *testing.T) {
	emails := newFakeEmailStore()
	emails.emails["msg-4"] = &models.Email{
		MessageID: "msg-4",
		From:      models.EmailAddress{Email: "b@example.com"},
		Subject:   "Retry me",
		Body:      models.EmailBody{Text: "stored body"},
	}
	inbox := newFakeInbox()
	// No provider copy: a retry must come from the durable record.
	classifier := &fakeClassifier{}
	p := newTestPipeline(inbox, classifier, emails)

	skipped, err := p.ProcessMessage(context.Background(), "msg-4")
	if err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	if skipped {
		t.Error("unprocessed stored message reported as skipped")
	}
	if !emails.emails["msg-4"].AIProcessing.Processed {
		t.Error("retried email not marked processed")
	}
}

func TestProcessMessageSaveRetriesOnce(t *testing.T) {
	emails := newFakeEmailStore()
	emails.saveErr = errors.New("transient")
	emails.saveErrOnce = true
	inbox := newFakeInbox()
	inbox.messages["msg-5"] = plainMessage("msg-5", "c@example.com", "Hi", "body")
	p := newTestPipeline(inbox, &fakeClassifier{}, emails)

	if _, err := p.ProcessMessage(context.Background(), "msg-5"); err != nil {
		t.Fatalf("transient save failure should be retried: %v", err)
	}
	if emails.saves != 2 {
		t.Errorf("saves = %d, want 2", emails.saves)
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	emails := newFakeEmailStore()
	inbox := newFakeInbox()
	ids := []string{"b-1", "b-2", "b-3", "b-4", "b-5"}
	for _, id := range ids {
		inbox.refs = append(inbox.refs, MessageRef{ID: id, ThreadID: "thread-" + id})
		inbox.messages[id] = plainMessage(id, "p@example.com", "Subject "+id, "body "+id)
	}
	classifier := &fakeClassifier{errFor: map[string]error{
		"b-3": classificationErr("model timeout"),
	}}
	p := newTestPipeline(inbox, classifier, emails)

	result, err := p.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}

	if result.Listed != 5 {
		t.Errorf("listed = %d, want 5", result.Listed)
	}
	if result.Processed != 4 {
		t.Errorf("processed = %d, want 4", result.Processed)
	}
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}

	for _, id := range ids {
		stored := emails.emails[id]
		if stored == nil {
			t.Errorf("%s was not persisted", id)
			continue
		}
		if id == "b-3" && stored.AIProcessing.Processed {
			t.Error("failed message must stay unprocessed")
		}
		if id != "b-3" && !stored.AIProcessing.Processed {
			t.Errorf("%s not processed despite sibling failure", id)
		}
	}
}

func TestRunBatchDrainsStoredBacklog(t *testing.T) {
	emails := newFakeEmailStore()
	// Saved on an earlier tick, classification failed, and the provider no
	// longer lists it.
	emails.emails["stale-1"] = &models.Email{
		MessageID: "stale-1",
		ThreadID:  "thread-stale-1",
		From:      models.EmailAddress{Email: "old@example.com"},
		Body:      models.EmailBody{Text: "stored body"},
	}
	inbox := newFakeInbox()
	inbox.refs = []MessageRef{{ID: "fresh-1", ThreadID: "thread-fresh-1"}}
	inbox.messages["fresh-1"] = plainMessage("fresh-1", "new@example.com", "Hello", "fresh body")
	p := newTestPipeline(inbox, &fakeClassifier{}, emails)

	result, err := p.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}

	if result.Listed != 2 {
		t.Errorf("listed = %d, want fresh message plus backlog", result.Listed)
	}
	if result.Processed != 2 {
		t.Errorf("processed = %d, want 2", result.Processed)
	}
	if !emails.emails["stale-1"].AIProcessing.Processed {
		t.Error("backlog email was not drained")
	}
	if !emails.emails["fresh-1"].AIProcessing.Processed {
		t.Error("fresh email was not processed")
	}
}

func TestRunBatchEmptyInbox(t *testing.T) {
	p := newTestPipeline(newFakeInbox(), &fakeClassifier{}, newFakeEmailStore())

	result, err := p.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}
	if result.Listed != 0 || result.Processed != 0 {
		t.Errorf("result = %+v, want all zero", result)
	}
}

func TestProcessStored(t *testing.T) {
	emails := newFakeEmailStore()
	p := newTestPipeline(newFakeInbox(), &fakeClassifier{}, emails)

	if err := p.ProcessStored(context.Background(), "missing"); err == nil {
		t.Error("unknown email should be an error")
	}

	emails.emails["done"] = &models.Email{
		MessageID:    "done",
		AIProcessing: models.AIProcessing{Processed: true},
	}
	if err := p.ProcessStored(context.Background(), "done"); err != nil {
		t.Errorf("already-processed email should be a no-op, got %v", err)
	}

	emails.emails["pending"] = &models.Email{
		MessageID: "pending",
		From:      models.EmailAddress{Email: "d@example.com"},
		Body:      models.EmailBody{Text: "pending body"},
	}
	if err := p.ProcessStored(context.Background(), "pending"); err != nil {
		t.Fatalf("ProcessStored returned error: %v", err)
	}
	if !emails.emails["pending"].AIProcessing.Processed {
		t.Error("stored email not processed")
	}
}
