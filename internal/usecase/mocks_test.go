// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/adapter"
	"learnhub-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// fixedClock returns a settable clock for tests.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// snapshotter lets the mock tx manager roll repositories back.
type snapshotter interface {
	snapshot() (restore func())
}

// --- Orders ---

type memOrderRepo struct {
	mu        sync.Mutex
	store     map[string]*model.Order
	createErr error
	updateErr error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{store: make(map[string]*model.Order)}
}

func (m *memOrderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.store[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) FindByTranID(ctx context.Context, tx repository.Tx, tranID string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.store {
		if o.TranID == tranID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memOrderRepo) SetSessionKey(ctx context.Context, tx repository.Tx, id, sessionKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.SessionKey = &sessionKey
	return nil
}

func (m *memOrderRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, paidAt *time.Time) (bool, error) {
	if m.updateErr != nil {
		return false, m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = status
	o.PaidAt = paidAt
	return true, nil
}

func (m *memOrderRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.store {
		if o.Status == model.OrderStatusPending && o.CreatedAt.Before(olderThan) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memOrderRepo) status(id string) model.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.store[id]; ok {
		return o.Status
	}
	return ""
}

func (m *memOrderRepo) snapshot() func() {
	m.mu.Lock()
	saved := make(map[string]model.Order, len(m.store))
	for k, v := range m.store {
		saved[k] = *v
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.store = make(map[string]*model.Order, len(saved))
		for k, v := range saved {
			o := v
			m.store[k] = &o
		}
	}
}

// --- Payments ---

type memPaymentRepo struct {
	mu        sync.Mutex
	store     map[string]*model.Payment // by tran id
	upserts   int
	upsertErr error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) UpsertByTranID(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	cp := *p
	if old, ok := m.store[p.TranID]; ok {
		cp.ID = old.ID
		cp.CreatedAt = old.CreatedAt
	}
	m.store[p.TranID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByTranID(ctx context.Context, tx repository.Tx, tranID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[tranID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) ListByOrder(ctx context.Context, tx repository.Tx, orderID string) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.OrderID == orderID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

func (m *memPaymentRepo) snapshot() func() {
	m.mu.Lock()
	saved := make(map[string]model.Payment, len(m.store))
	for k, v := range m.store {
		saved[k] = *v
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.store = make(map[string]*model.Payment, len(saved))
		for k, v := range saved {
			p := v
			m.store[k] = &p
		}
	}
}

// --- Entitlements ---

type memEntitlementRepo struct {
	mu       sync.Mutex
	courses  map[string]model.CourseEntitlement  // user|course
	chapters map[string]model.ChapterEntitlement // user|chapter
	grantErr error
	readErr  error
}

func newMemEntitlementRepo() *memEntitlementRepo {
	return &memEntitlementRepo{
		courses:  make(map[string]model.CourseEntitlement),
		chapters: make(map[string]model.ChapterEntitlement),
	}
}

func (m *memEntitlementRepo) HasActiveCourseEntitlement(ctx context.Context, tx repository.Tx, userID, courseID string, now time.Time) (bool, error) {
	if m.readErr != nil {
		return false, m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.courses[userID+"|"+courseID]
	return ok && e.IsActive(now), nil
}

func (m *memEntitlementRepo) HasChapterEntitlement(ctx context.Context, tx repository.Tx, userID, chapterID string) (bool, error) {
	if m.readErr != nil {
		return false, m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.chapters[userID+"|"+chapterID]
	return ok, nil
}

func (m *memEntitlementRepo) HasAnyActive(ctx context.Context, tx repository.Tx, userID string, now time.Time) (bool, error) {
	ents, err := m.ListByUser(ctx, tx, userID)
	if err != nil {
		return false, err
	}
	return ents.AnyActive(now), nil
}

func (m *memEntitlementRepo) GrantCourseEntitlement(ctx context.Context, tx repository.Tx, e *model.CourseEntitlement) error {
	if m.grantErr != nil {
		return m.grantErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[e.UserID+"|"+e.CourseID] = *e
	return nil
}

func (m *memEntitlementRepo) GrantChapterEntitlement(ctx context.Context, tx repository.Tx, e *model.ChapterEntitlement) error {
	if m.grantErr != nil {
		return m.grantErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := e.UserID + "|" + e.ChapterID
	if _, ok := m.chapters[key]; !ok {
		m.chapters[key] = *e
	}
	return nil
}

func (m *memEntitlementRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) (model.Entitlements, error) {
	if m.readErr != nil {
		return model.Entitlements{}, m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out model.Entitlements
	for k, e := range m.courses {
		if strings.HasPrefix(k, userID+"|") {
			out.Courses = append(out.Courses, e)
		}
	}
	for k, e := range m.chapters {
		if strings.HasPrefix(k, userID+"|") {
			out.Chapters = append(out.Chapters, e)
		}
	}
	sort.Slice(out.Courses, func(i, j int) bool { return out.Courses[i].CourseID < out.Courses[j].CourseID })
	return out, nil
}

func (m *memEntitlementRepo) course(userID, courseID string) (model.CourseEntitlement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.courses[userID+"|"+courseID]
	return e, ok
}

func (m *memEntitlementRepo) snapshot() func() {
	m.mu.Lock()
	courses := make(map[string]model.CourseEntitlement, len(m.courses))
	for k, v := range m.courses {
		courses[k] = v
	}
	chapters := make(map[string]model.ChapterEntitlement, len(m.chapters))
	for k, v := range m.chapters {
		chapters[k] = v
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.courses = courses
		m.chapters = chapters
	}
}

// --- Usage ---

type memUsageCounter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newMemUsageCounter() *memUsageCounter {
	return &memUsageCounter{counts: make(map[string]int)}
}

func usageKey(userID, dateKey string, t model.UsageType) string {
	return userID + "|" + dateKey + "|" + string(t)
}

func (m *memUsageCounter) IncrementIfBelow(ctx context.Context, userID, dateKey string, t model.UsageType, limit int, resetAt time.Time) (int, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := usageKey(userID, dateKey, t)
	if m.counts[k] >= limit {
		return m.counts[k], false, nil
	}
	m.counts[k]++
	return m.counts[k], true, nil
}

func (m *memUsageCounter) Get(ctx context.Context, userID, dateKey string, t model.UsageType) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[usageKey(userID, dateKey, t)], nil
}

// --- Catalog & users ---

type memCatalog struct {
	courses  map[string]*model.Course
	chapters map[string]*model.Chapter
	subjects map[string]*model.Subject
	err      error
}

func newMemCatalog() *memCatalog {
	c := &memCatalog{
		courses:  make(map[string]*model.Course),
		chapters: make(map[string]*model.Chapter),
		subjects: make(map[string]*model.Subject),
	}
	c.subjects["physics"] = &model.Subject{ID: "physics", Title: "Physics", FirstChapterFree: true}
	c.courses["course-1"] = &model.Course{ID: "course-1", SubjectID: "physics", Title: "HSC Physics", Price: decimal.NewFromInt(799), Currency: "BDT"}
	c.chapters["ch-1"] = &model.Chapter{ID: "ch-1", CourseID: "course-1", SubjectID: "physics", Title: "Vectors", OrderIndex: 1}
	c.chapters["ch-2"] = &model.Chapter{ID: "ch-2", CourseID: "course-1", SubjectID: "physics", Title: "Motion", Summary: "Kinematics in one dimension.", OrderIndex: 2}
	c.chapters["ch-3"] = &model.Chapter{ID: "ch-3", CourseID: "course-1", SubjectID: "physics", Title: "Waves", OrderIndex: 3, IsFree: true}
	return c
}

func (m *memCatalog) FindCourse(ctx context.Context, tx repository.Tx, id string) (*model.Course, error) {
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memCatalog) FindChapter(ctx context.Context, tx repository.Tx, id string) (*model.Chapter, error) {
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.chapters[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memCatalog) FindSubject(ctx context.Context, tx repository.Tx, id string) (*model.Subject, error) {
	if m.err != nil {
		return nil, m.err
	}
	if s, ok := m.subjects[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

type memUserRepo struct {
	profiles map[string]*model.UserProfile
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{profiles: map[string]*model.UserProfile{
		"user-1": {ID: "user-1", FullName: "Rahim Uddin", Email: "rahim@example.com", Phone: "+880 1712-345678"},
		"user-2": {ID: "user-2", FullName: "Karim", Phone: "123"},
	}}
}

func (m *memUserRepo) FindProfile(ctx context.Context, tx repository.Tx, userID string) (*model.UserProfile, error) {
	if p, ok := m.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// --- Tx manager ---

// MockTxManager serializes transactions and restores every registered
// repository when fn fails.
type MockTxManager struct {
	mu    sync.Mutex
	repos []snapshotter
}

func NewMockTxManager(repos ...snapshotter) *MockTxManager {
	return &MockTxManager{repos: repos}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	restores := make([]func(), 0, len(m.repos))
	for _, r := range m.repos {
		restores = append(restores, r.snapshot())
	}
	if err := fn(ctx, nil); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

// --- Gateway ---

type MockPaymentGateway struct {
	mu            sync.Mutex
	InitFunc      func(ctx context.Context, req adapter.SessionRequest) (*adapter.Session, error)
	ValidateFunc  func(ctx context.Context, valID string) (*adapter.Validation, error)
	QueryFunc     func(ctx context.Context, tranID string) ([]adapter.Transaction, error)
	VerifyResult  bool
	initRequests  []adapter.SessionRequest
	validateCalls int
}

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) InitSession(ctx context.Context, req adapter.SessionRequest) (*adapter.Session, error) {
	g.mu.Lock()
	g.initRequests = append(g.initRequests, req)
	g.mu.Unlock()
	if g.InitFunc != nil {
		return g.InitFunc(ctx, req)
	}
	return &adapter.Session{SessionKey: "sess-" + req.TranID, RedirectURL: "https://gateway.test/pay/" + req.TranID}, nil
}

func (g *MockPaymentGateway) Validate(ctx context.Context, valID string) (*adapter.Validation, error) {
	g.mu.Lock()
	g.validateCalls++
	g.mu.Unlock()
	if g.ValidateFunc != nil {
		return g.ValidateFunc(ctx, valID)
	}
	return nil, errors.New("validate not configured")
}

func (g *MockPaymentGateway) QueryByTranID(ctx context.Context, tranID string) ([]adapter.Transaction, error) {
	if g.QueryFunc != nil {
		return g.QueryFunc(ctx, tranID)
	}
	return nil, nil
}

func (g *MockPaymentGateway) VerifyCallback(fields map[string]string) bool { return g.VerifyResult }

func (g *MockPaymentGateway) validations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.validateCalls
}

func (g *MockPaymentGateway) lastInit() adapter.SessionRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initRequests[len(g.initRequests)-1]
}

// --- Side effects ---

type fakeSealer struct{ err error }

func (s fakeSealer) Encrypt(plaintext string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "sealed:" + plaintext, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []adapter.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev adapter.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingArchiver struct {
	mu   sync.Mutex
	keys []string
}

func (a *recordingArchiver) Archive(ctx context.Context, key string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return nil
}

type recordingReceipts struct {
	mu       sync.Mutex
	receipts []adapter.Receipt
}

func (r *recordingReceipts) SendReceipt(ctx context.Context, rc adapter.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = append(r.receipts, rc)
	return nil
}

// --- AI ---

type fakeAI struct {
	reply string
	err   error
	calls int
	last  []adapter.Message
}

func (f *fakeAI) Name() string { return "fake" }

func (f *fakeAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: model}, nil
}

func (f *fakeAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	f.calls++
	f.last = messages
	if f.err != nil {
		return "", adapter.Usage{}, f.err
	}
	return f.reply, adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

// wordTokens counts whitespace-separated words as tokens.
type wordTokens struct{}

func (wordTokens) Count(model, text string) int { return len(strings.Fields(text)) }

func (wordTokens) Truncate(model, text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return text
	}
	return strings.Join(words[:max], " ")
}
