package service

import (
	"context"
	"sync"
	"testing"

	stripe "github.com/stripe/stripe-go/v82"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/config"
	"github.com/qs3c/fbads_go_server/internal/pkg/billing"
	"github.com/qs3c/fbads_go_server/internal/pkg/keylock"
	"github.com/qs3c/fbads_go_server/internal/pkg/pubsub"
	"github.com/qs3c/fbads_go_server/internal/repository"
	"github.com/qs3c/fbads_go_server/internal/testutil"
)

const testSecret = "test-secret-key-for-testing"

type sentMail struct {
	Kind string
	To   string
	Arg  string
}

type fakeMailer struct {
	mu         sync.Mutex
	configured bool
	sent       []sentMail
}

func (m *fakeMailer) Configured() bool { return m.configured }

func (m *fakeMailer) record(kind, to, arg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Kind: kind, To: to, Arg: arg})
	return nil
}

func (m *fakeMailer) SendPasswordReset(to, link string) error {
	return m.record("reset", to, link)
}

func (m *fakeMailer) SendWelcome(to, name string) error {
	return m.record("welcome", to, name)
}

func (m *fakeMailer) SendPaymentFailed(to, planName, link string) error {
	return m.record("payment_failed", to, planName)
}

func (m *fakeMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMail, len(m.sent))
	copy(out, m.sent)
	return out
}

type repos struct {
	user    *repository.UserRepository
	session *repository.SessionRepository
	rbac    *repository.RBACRepository
	sub     *repository.SubscriptionRepository
	fb      *repository.FacebookRepository
	camp    *repository.CampaignRepository
	insight *repository.InsightRepository
	lib     *repository.AdLibraryRepository
	job     *repository.SyncJobRepository
}

func newRepos(db *gorm.DB) repos {
	return repos{
		user:    repository.NewUserRepository(db),
		session: repository.NewSessionRepository(db),
		rbac:    repository.NewRBACRepository(db),
		sub:     repository.NewSubscriptionRepository(db),
		fb:      repository.NewFacebookRepository(db),
		camp:    repository.NewCampaignRepository(db),
		insight: repository.NewInsightRepository(db),
		lib:     repository.NewAdLibraryRepository(db),
		job:     repository.NewSyncJobRepository(db),
	}
}

func testConfig() *config.Config {
	return &config.Config{
		JWT:      config.JWTConfig{Secret: testSecret},
		Frontend: config.FrontendConfig{URL: "http://localhost:3000"},
	}
}

func newRBAC(db *gorm.DB, r repos) *RBACService {
	return NewRBACService(db, r.rbac, r.user, r.sub)
}

func setupAuth(t *testing.T) (*AuthService, *gorm.DB, *fakeMailer) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	r := newRepos(db)
	mailer := &fakeMailer{configured: true}
	svc := NewAuthService(db, r.user, r.session, r.rbac, newRBAC(db, r), mailer, testConfig())
	svc.hashCost = bcrypt.MinCost
	return svc, db, mailer
}

func setupUsers(t *testing.T) (*UserService, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	r := newRepos(db)
	svc := NewUserService(db, r.user, r.session, r.rbac, r.fb, r.sub, newRBAC(db, r))
	svc.hashCost = bcrypt.MinCost
	return svc, db
}

func adminActor(userID int64) Actor {
	return Actor{UserID: userID, Permissions: NewPermissionSet(PermUsersRead, PermUsersWrite, PermUsersDelete)}
}

type published struct {
	UserID         int64
	SubscriptionID int64
	Status         string
}

type fakeNotifier struct {
	mu       sync.Mutex
	changes  []published
	progress []pubsub.Message
}

func (n *fakeNotifier) PublishProgress(_ context.Context, msg *pubsub.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, *msg)
	return nil
}

func (n *fakeNotifier) PublishSubscriptionChanged(_ context.Context, userID, subID int64, status string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, published{UserID: userID, SubscriptionID: subID, Status: status})
	return nil
}

func (n *fakeNotifier) Changes() []published {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]published, len(n.changes))
	copy(out, n.changes)
	return out
}

func (n *fakeNotifier) Progress() []pubsub.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]pubsub.Message, len(n.progress))
	copy(out, n.progress)
	return out
}

type fakeProvider struct {
	mu          sync.Mutex
	checkouts   []billing.CheckoutInput
	canceled    []string
	invoices    []billing.Invoice
	customerIDs []string
	err         error
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, in billing.CheckoutInput) (*billing.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.checkouts = append(p.checkouts, in)
	return &billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (p *fakeProvider) CancelSubscription(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.canceled = append(p.canceled, id)
	return nil
}

func (p *fakeProvider) ListInvoices(_ context.Context, customerID string, limit int) ([]billing.Invoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.customerIDs = append(p.customerIDs, customerID)
	return p.invoices, nil
}

func (p *fakeProvider) CreateSetupIntent(_ context.Context, customerID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.customerIDs = append(p.customerIDs, customerID)
	return "seti_secret_" + customerID, nil
}

func (p *fakeProvider) ParseWebhook(payload []byte, signature string) (*stripe.Event, error) {
	return nil, billing.ErrNotConfigured
}

func setupPayments(t *testing.T, provider billing.Provider) (*PaymentService, *gorm.DB, *fakeNotifier) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	r := newRepos(db)
	notifier := &fakeNotifier{}
	svc := NewPaymentService(r.sub, r.user, provider, keylock.New(), notifier, testConfig())
	return svc, db, notifier
}

func setupWebhook(t *testing.T) (*WebhookService, *gorm.DB, *fakeNotifier, *fakeMailer) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	r := newRepos(db)
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{configured: true}
	svc := NewWebhookService(db, r.sub, r.rbac, r.user, keylock.New(), notifier, mailer, testConfig())
	return svc, db, notifier, mailer
}
