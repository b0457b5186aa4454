package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	caserepo "github.com/smallbiznis/redress/internal/casefile/repository"
	caseservice "github.com/smallbiznis/redress/internal/casefile/service"
	"github.com/smallbiznis/redress/internal/config"
	"github.com/smallbiznis/redress/internal/dispatch/domain"
	"github.com/smallbiznis/redress/internal/dispatch/repository"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	letterrepo "github.com/smallbiznis/redress/internal/letter/repository"
	letterservice "github.com/smallbiznis/redress/internal/letter/service"
	"github.com/smallbiznis/redress/internal/migration"
	"github.com/smallbiznis/redress/internal/providers/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (f *fakeMailer) Send(ctx context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg.HTML)
	return nil
}

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	cases   casedomain.Service
	letters letterdomain.Service
	mailer  *fakeMailer
	svc     domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.AutoMigrate(db))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	cases := caseservice.NewService(caseservice.Params{DB: db, Log: log, GenID: node, Repo: caserepo.Provide()})
	letters := letterservice.NewService(letterservice.Params{DB: db, Log: log, GenID: node, Repo: letterrepo.Provide()})
	mailer := &fakeMailer{}
	svc := NewService(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Repo:      repository.Provide(),
		CaseSvc:   cases,
		LetterSvc: letters,
		Email:     mailer,
		Cfg:       config.Config{PublicBaseURL: "https://redress.test/"},
	})
	return &fixture{db: db, node: node, cases: cases, letters: letters, mailer: mailer, svc: svc}
}

// readyCase walks a case to ready with one stored letter.
func (f *fixture) readyCase(t *testing.T) (*casedomain.Case, *letterdomain.Letter) {
	t.Helper()
	ctx := context.Background()
	id := f.node.Generate()
	c, err := f.cases.Create(ctx, f.db, id, f.node.Generate(), casedomain.CreateCaseRequest{
		AccountID:   f.node.Generate(),
		Complaint:   "The kettle broke after two days and the shop refused to help.",
		CompanyName: "Acme Appliances",
		Currency:    "GBP",
	})
	require.NoError(t, err)

	_, err = f.cases.Transition(ctx, c.ID, casedomain.StatusAnalyzing, nil)
	require.NoError(t, err)
	_, err = f.cases.Transition(ctx, c.ID, casedomain.StatusAnalyzed, nil)
	require.NoError(t, err)

	letter, _, err := f.letters.GenerateLetter(ctx, letterdomain.GenerateRequest{Case: *c})
	require.NoError(t, err)
	c, err = f.cases.Transition(ctx, c.ID, casedomain.StatusReady, func(tx *gorm.DB, c *casedomain.Case) error {
		c.GeneratedLetter = &letter.Body
		return f.letters.Save(ctx, tx, letter)
	})
	require.NoError(t, err)
	return c, letter
}

func TestSendMovesCaseToSentAndTracksOpens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, letter := f.readyCase(t)

	send, err := f.svc.Send(ctx, domain.SendRequest{CaseID: c.ID, LetterID: letter.ID, Recipient: "complaints@acme.test"})
	require.NoError(t, err)
	require.Len(t, f.mailer.sent, 1)
	assert.Contains(t, f.mailer.sent[0], "https://redress.test/t/"+send.TrackingID+"/pixel.gif")

	reloaded, err := f.cases.Load(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, casedomain.StatusSent, reloaded.Status)
	assert.NotNil(t, reloaded.SentAt)

	require.NoError(t, f.svc.RecordOpen(ctx, send.TrackingID))
	require.NoError(t, f.svc.RecordOpen(ctx, send.TrackingID))

	sends, err := f.svc.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, sends, 1)
	assert.Equal(t, 2, sends[0].OpenCount)
	assert.NotNil(t, sends[0].OpenedAt)

	// a second send of a sent case stays sent
	_, err = f.svc.Send(ctx, domain.SendRequest{CaseID: c.ID, LetterID: letter.ID, Recipient: "escalations@acme.test"})
	require.NoError(t, err)
	sends, err = f.svc.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, sends, 2)
}

func TestSendFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, letter := f.readyCase(t)
	f.mailer.err = errors.New("smtp down")

	_, err := f.svc.Send(ctx, domain.SendRequest{CaseID: c.ID, LetterID: letter.ID, Recipient: "complaints@acme.test"})
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)

	reloaded, err := f.cases.Load(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, casedomain.StatusReady, reloaded.Status)
	sends, err := f.svc.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, sends)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, letter := f.readyCase(t)

	_, err := f.svc.Send(ctx, domain.SendRequest{CaseID: c.ID, LetterID: letter.ID, Recipient: "not an email"})
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)

	_, err = f.svc.Send(ctx, domain.SendRequest{CaseID: c.ID, LetterID: f.node.Generate(), Recipient: "a@acme.test"})
	assert.ErrorIs(t, err, letterdomain.ErrNotFound)

	_, err = f.cases.Resolve(ctx, c.AccountID, c.ID, "refund received")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, domain.SendRequest{CaseID: c.ID, LetterID: letter.ID, Recipient: "a@acme.test"})
	assert.ErrorIs(t, err, domain.ErrNotSendable)
}

func TestRecordOpenUnknownTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.RecordOpen(ctx, "nope"), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.RecordOpen(ctx, strings.Repeat("0", 26)), domain.ErrNotFound)
}

func TestParagraphs(t *testing.T) {
	assert.Equal(t, []string{"one", "two\nlines"}, paragraphs("one\r\n\r\n\n\ntwo\nlines\n"))
}
