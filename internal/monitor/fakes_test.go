package monitor

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"horse.fit/portalerts/internal/classifier"
	"horse.fit/portalerts/internal/db"
	"horse.fit/portalerts/internal/lease"
	"horse.fit/portalerts/internal/messenger"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func strPtr(s string) *string { return &s }

func int16Ptr(v int16) *int16 { return &v }

// searchPage renders posts the way a Nitter search result page does.
func searchPage(posts ...string) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><div class="timeline">`)
	for _, post := range posts {
		fmt.Fprintf(&sb, `<div class="timeline-item"><div class="tweet-body"><div class="tweet-content media-body" dir="auto">%s</div></div></div>`, html.EscapeString(post))
	}
	sb.WriteString(`</div></body></html>`)
	return sb.String()
}

type memSubscriber struct {
	id               int64
	chatID           int64
	defaultThreshold int16
	active           bool
	// subscriptions maps entity id to an optional per-entity threshold.
	subscriptions map[int64]*int16
}

type memAttempt struct {
	status    string
	messageID *string
	errMsg    *string
}

// memStore enforces the same uniqueness and eligibility rules as the database.
type memStore struct {
	mu          sync.Mutex
	entities    []db.Entity
	posts       []db.ScoredPost
	subscribers []memSubscriber
	attempts    map[[2]int64]*memAttempt
	stamps      map[int64]time.Time
	nextPostID  int64

	listErr     error
	lookupErr   error
	insertErr   map[string]error
	lookupCalls int
}

func newMemStore(entities ...db.Entity) *memStore {
	return &memStore{
		entities:  entities,
		attempts:  map[[2]int64]*memAttempt{},
		stamps:    map[int64]time.Time{},
		insertErr: map[string]error{},
	}
}

func (s *memStore) ListDueEntities(_ context.Context, limit int) ([]db.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]db.Entity, 0, limit)
	for _, entity := range s.entities {
		if !entity.Active {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, entity)
	}
	return out, nil
}

func (s *memStore) ExistingPostTexts(_ context.Context, entityID int64, texts []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupCalls++
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	wanted := map[string]struct{}{}
	for _, text := range texts {
		wanted[text] = struct{}{}
	}
	found := map[string]struct{}{}
	for _, post := range s.posts {
		if post.EntityID != entityID {
			continue
		}
		if _, ok := wanted[post.PostText]; ok {
			found[post.PostText] = struct{}{}
		}
	}
	return found, nil
}

func (s *memStore) InsertPostIfAbsent(_ context.Context, post db.NewScoredPost) (*db.ScoredPost, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertErr[post.PostText]; err != nil {
		return nil, false, err
	}
	if post.ImportanceScore < 0 || post.ImportanceScore > 10 {
		return nil, false, fmt.Errorf("score %d violates check constraint", post.ImportanceScore)
	}
	for _, existing := range s.posts {
		if existing.EntityID == post.EntityID && existing.PostText == post.PostText {
			return nil, false, nil
		}
	}
	s.nextPostID++
	row := db.ScoredPost{
		PostID:          s.nextPostID,
		PostUUID:        fmt.Sprintf("00000000-0000-0000-0000-%012d", s.nextPostID),
		EntityID:        post.EntityID,
		PostText:        post.PostText,
		AuthorLabel:     post.AuthorLabel,
		DiscoveredAt:    post.DiscoveredAt,
		ImportanceScore: post.ImportanceScore,
		Category:        post.Category,
		Summary:         post.Summary,
		SourceURL:       post.SourceURL,
	}
	s.posts = append(s.posts, row)
	return &row, true, nil
}

// ListEligibleSubscribers mirrors eligibleSubscribersSQL; its shape is asserted in internal/db.
func (s *memStore) ListEligibleSubscribers(_ context.Context, entityID int64, score int16) ([]db.EligibleSubscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]db.EligibleSubscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		if !sub.active {
			continue
		}
		override, subscribed := sub.subscriptions[entityID]
		if !subscribed {
			continue
		}
		threshold := sub.defaultThreshold
		if override != nil {
			threshold = *override
		}
		if threshold > score {
			continue
		}
		out = append(out, db.EligibleSubscriber{
			SubscriberID:   sub.id,
			TelegramChatID: sub.chatID,
			Threshold:      threshold,
		})
	}
	return out, nil
}

func (s *memStore) ClaimNotificationAttempt(_ context.Context, postID, subscriberID, _ int64, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{postID, subscriberID}
	if _, exists := s.attempts[key]; exists {
		return false, nil
	}
	s.attempts[key] = &memAttempt{status: db.AttemptStatusPending}
	return true, nil
}

func (s *memStore) CompleteNotificationAttempt(_ context.Context, postID, subscriberID int64, status string, messageID, errMsg *string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, exists := s.attempts[[2]int64{postID, subscriberID}]
	if !exists {
		return errors.New("attempt not claimed")
	}
	attempt.status = status
	attempt.messageID = messageID
	attempt.errMsg = errMsg
	return nil
}

func (s *memStore) StampEntityChecked(_ context.Context, entityID int64, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.stamps[entityID]; ok && prev.After(checkedAt) {
		return nil
	}
	s.stamps[entityID] = checkedAt
	return nil
}

func (s *memStore) postCount(entityID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, post := range s.posts {
		if post.EntityID == entityID {
			n++
		}
	}
	return n
}

func (s *memStore) stamped(entityID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stamps[entityID]
	return ok
}

// pageFetcher serves canned documents per query.
type pageFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	errs    map[string]error
	panics  map[string]bool
	queries []string
}

func (f *pageFetcher) Fetch(_ context.Context, query string) (string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.panics[query] {
		panic("fetcher exploded for " + query)
	}
	if err := f.errs[query]; err != nil {
		return "", err
	}
	return f.pages[query], nil
}

func (f *pageFetcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// fixedClassifier answers every item with the same verdict.
type fixedClassifier struct {
	mu       sync.Mutex
	score    int
	category string
	summary  string
	status   classifier.ParseStatus
	requests []classifier.Request
}

func (c *fixedClassifier) Classify(_ context.Context, req classifier.Request) classifier.Result {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.status != "" && c.status != classifier.StatusOK {
		return classifier.Result{Status: c.status, Err: errors.New("classifier rejected")}
	}
	verdicts := make([]classifier.Verdict, 0, len(req.Items))
	for i := range req.Items {
		verdicts = append(verdicts, classifier.Verdict{
			Index:    i,
			Score:    c.score,
			Category: c.category,
			Summary:  c.summary,
		})
	}
	return classifier.Result{Status: classifier.StatusOK, Verdicts: verdicts}
}

func (c *fixedClassifier) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// hangingProvider blocks until the classifier timeout fires.
type hangingProvider struct{}

func (hangingProvider) Name() string { return "hanging" }

func (hangingProvider) Generate(ctx context.Context, _ classifier.GenerateRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type recordingSender struct {
	mu       sync.Mutex
	messages []messenger.Message
	failFor  map[int64]error
	nextID   int
}

func (s *recordingSender) Send(_ context.Context, msg messenger.Message) (messenger.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[msg.ChatID]; err != nil {
		return messenger.SendResult{}, err
	}
	s.nextID++
	s.messages = append(s.messages, msg)
	return messenger.SendResult{MessageID: fmt.Sprintf("%d", s.nextID)}, nil
}

func (s *recordingSender) sentTo(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, msg := range s.messages {
		if msg.ChatID == chatID {
			n++
		}
	}
	return n
}

type staticLinks struct{}

func (staticLinks) SearchURL(query string) string {
	return "https://twitter.com/search?q=" + query
}

type memLeaser struct {
	mu       sync.Mutex
	held     map[int64]bool
	released []int64
}

func newMemLeaser(held ...int64) *memLeaser {
	l := &memLeaser{held: map[int64]bool{}}
	for _, id := range held {
		l.held[id] = true
	}
	return l
}

func (l *memLeaser) Acquire(_ context.Context, entityID int64, _ time.Duration) (lease.Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[entityID] {
		return nil, false, nil
	}
	l.held[entityID] = true
	return &memLease{leaser: l, entityID: entityID}, true, nil
}

type memLease struct {
	leaser   *memLeaser
	entityID int64
}

func (l *memLease) Token() string { return fmt.Sprintf("lease-%d", l.entityID) }

func (l *memLease) Release(_ context.Context) error {
	l.leaser.mu.Lock()
	defer l.leaser.mu.Unlock()
	delete(l.leaser.held, l.entityID)
	l.leaser.released = append(l.leaser.released, l.entityID)
	return nil
}
