package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"feed-ai-go/internal/config"
	"feed-ai-go/internal/model"
	"feed-ai-go/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type RepositoryTestSuite struct {
	suite.Suite
	db       *gorm.DB
	users    UserRepository
	feedback FeedbackRepository
	ctx      context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	s.Require().NoError(err)
	s.Require().NoError(database.Migrate(db, &model.User{}, &model.FeedbackResult{}, &model.BatchTag{}))

	s.db = db
	s.users = NewUserRepository(db)
	s.feedback = NewFeedbackRepository(db, 2)
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) createUser(email, cpf string) *model.User {
	u := &model.User{Name: "n", Username: "u", Email: email, Password: "x", CPF: cpf}
	s.Require().NoError(s.users.Create(s.ctx, u))
	return u
}

// seedBatch 写入一个批次，labels 中的每个元素对应一条结果。
func (s *RepositoryTestSuite) seedBatch(userID, tag string, at time.Time, labels ...string) *model.BatchTag {
	related := fmt.Sprintf("%s-%d", userID, at.UnixNano())
	bt := &model.BatchTag{
		Tag:                tag,
		ConsultedQueryDate: at,
		UserID:             userID,
		RelatedKey:         related,
		Key:                model.TagKey(userID, tag),
	}
	results := make([]model.FeedbackResult, len(labels))
	for i, l := range labels {
		results[i] = model.FeedbackResult{
			Text:                fmt.Sprintf("%s text %d", tag, i),
			SentimentPrediction: l,
			ConsultedQueryDate:  at,
			UserID:              userID,
			RelatedKey:          related,
		}
	}
	s.Require().NoError(s.feedback.CreateBatch(s.ctx, bt, results))
	return bt
}

func (s *RepositoryTestSuite) countResults(userID string) int64 {
	var n int64
	s.Require().NoError(s.db.Model(&model.FeedbackResult{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func (s *RepositoryTestSuite) TestUser_CreateAssignsUUIDAndFinds() {
	u := s.createUser("a@x.com", "1")
	s.NotEqual(uuid.Nil, u.ID)

	byEmail, err := s.users.FindByEmail(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)

	byID, err := s.users.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("a@x.com", byID.Email)

	_, err = s.users.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *RepositoryTestSuite) TestUser_UniqueEmailAndCPF() {
	s.createUser("a@x.com", "1")

	err := s.users.Create(s.ctx, &model.User{Name: "n", Username: "u", Email: "a@x.com", Password: "x", CPF: "2"})
	s.Require().Error(err)
	s.Contains(err.Error(), "users.email")

	err = s.users.Create(s.ctx, &model.User{Name: "n", Username: "u", Email: "b@x.com", Password: "x", CPF: "1"})
	s.Require().Error(err)
	s.Contains(err.Error(), "users.cpf")

	all, err := s.users.FindAll(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *RepositoryTestSuite) TestUser_FindAllPublic() {
	u := s.createUser("a@x.com", "1")
	pub, err := s.users.FindAllPublic(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pub, 1)
	s.Equal(model.PublicUser{ID: u.ID, Name: "n", Username: "u"}, pub[0])
}

func (s *RepositoryTestSuite) TestUser_DeleteWithBatches() {
	u := s.createUser("a@x.com", "1")
	other := s.createUser("b@x.com", "2")
	s.seedBatch(u.ID.String(), "t1", time.Now().UTC(), "positivo", "negativo")
	s.seedBatch(other.ID.String(), "t1", time.Now().UTC(), "neutro")

	s.Require().NoError(s.users.DeleteWithBatches(s.ctx, u))

	_, err := s.users.FindByID(s.ctx, u.ID)
	s.ErrorIs(err, gorm.ErrRecordNotFound)
	s.Zero(s.countResults(u.ID.String()))
	s.EqualValues(1, s.countResults(other.ID.String()))
}

func (s *RepositoryTestSuite) TestCreateBatch_SharesKeyAndRollsBackOnDuplicate() {
	uid := uuid.NewString()
	bt := s.seedBatch(uid, "tag", time.Now().UTC(), "positivo", "negativo", "neutro")
	s.NotZero(bt.ID)
	s.EqualValues(3, s.countResults(uid))

	// 重复 key 必须让整个事务回滚，结果行数保持不变
	dup := &model.BatchTag{Tag: "tag", UserID: uid, RelatedKey: uid + "-other", Key: model.TagKey(uid, "tag"), ConsultedQueryDate: time.Now().UTC()}
	err := s.feedback.CreateBatch(s.ctx, dup, []model.FeedbackResult{{Text: "x", SentimentPrediction: "neutro", UserID: uid, RelatedKey: uid + "-other", ConsultedQueryDate: time.Now().UTC()}})
	s.Require().Error(err)
	s.Contains(err.Error(), "ai_response_tags.key")
	s.EqualValues(3, s.countResults(uid))
}

func (s *RepositoryTestSuite) TestFindTag_ScopedByUser() {
	a, b := uuid.NewString(), uuid.NewString()
	s.seedBatch(a, "shared", time.Now().UTC(), "positivo")

	found, err := s.feedback.FindTag(s.ctx, a, "shared")
	s.Require().NoError(err)
	s.Equal("shared", found.Tag)

	_, err = s.feedback.FindTag(s.ctx, b, "shared")
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *RepositoryTestSuite) TestFilter_PredicatesAndPagination() {
	uid := uuid.NewString()
	day1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	s.seedBatch(uid, "a", day1, "positivo", "negativo", "positivo")
	s.seedBatch(uid, "b", day2, "positivo", "neutro")
	s.seedBatch(uuid.NewString(), "a", day1, "positivo")

	all, err := s.feedback.Filter(s.ctx, uid, nil, 100, 0)
	s.Require().NoError(err)
	s.Len(all, 5)
	s.Equal("a text 0", all[0].Text)
	s.Equal("a", all[0].Tag)
	s.True(day1.Equal(time.Time(all[0].Date)))

	pos, err := s.feedback.Filter(s.ctx, uid, []Predicate{Where(ColumnSentiment, OpEq, "positivo")}, 100, 0)
	s.Require().NoError(err)
	s.Len(pos, 3)
	for _, r := range pos {
		s.Equal("positivo", r.Sentiment)
	}

	byTag, err := s.feedback.Filter(s.ctx, uid, []Predicate{Where(ColumnTag, OpIn, []string{"b"})}, 100, 0)
	s.Require().NoError(err)
	s.Len(byTag, 2)

	after, err := s.feedback.Filter(s.ctx, uid, []Predicate{Where(ColumnDate, OpGte, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))}, 100, 0)
	s.Require().NoError(err)
	s.Len(after, 2)

	page2, err := s.feedback.Filter(s.ctx, uid, nil, 2, 2)
	s.Require().NoError(err)
	s.Require().Len(page2, 2)
	s.Equal("a text 2", page2[0].Text)
	s.Equal("b text 0", page2[1].Text)
}

func (s *RepositoryTestSuite) TestFilter_RejectsUnknownColumn() {
	_, err := s.feedback.Filter(s.ctx, "u", []Predicate{{Column: "r.text; DROP TABLE users", Op: OpEq, Value: 1}}, 10, 0)
	s.Error(err)

	_, err = s.feedback.Filter(s.ctx, "u", []Predicate{{Column: ColumnTag, Op: "LIKE", Value: "%"}}, 10, 0)
	s.Error(err)
}

func (s *RepositoryTestSuite) TestGroupAndDistinct() {
	uid := uuid.NewString()
	s.seedBatch(uid, "b", time.Now().UTC(), "positivo", "positivo", "negativo")
	s.seedBatch(uid, "a", time.Now().UTC().Add(time.Second), "neutro")

	counts, err := s.feedback.GroupCounts(s.ctx, uid)
	s.Require().NoError(err)
	s.Equal([]model.SentimentCount{
		{Tag: "a", Sentiment: "neutro", Count: 1},
		{Tag: "b", Sentiment: "negativo", Count: 1},
		{Tag: "b", Sentiment: "positivo", Count: 2},
	}, counts)

	tags, err := s.feedback.DistinctTags(s.ctx, uid)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, tags)
}

func (s *RepositoryTestSuite) TestDeleteBatch_RemovesOnlyThatBatch() {
	uid := uuid.NewString()
	keep := s.seedBatch(uid, "keep", time.Now().UTC(), "positivo")
	drop := s.seedBatch(uid, "drop", time.Now().UTC().Add(time.Second), "negativo", "neutro")

	n, err := s.feedback.DeleteBatch(s.ctx, drop)
	s.Require().NoError(err)
	s.EqualValues(2, n)
	s.EqualValues(1, s.countResults(uid))

	_, err = s.feedback.FindTag(s.ctx, uid, "drop")
	s.ErrorIs(err, gorm.ErrRecordNotFound)
	_, err = s.feedback.FindTag(s.ctx, uid, keep.Tag)
	s.NoError(err)
}

func (s *RepositoryTestSuite) TestSetSourceObject() {
	bt := s.seedBatch(uuid.NewString(), "f", time.Now().UTC(), "positivo")
	s.Require().NoError(s.feedback.SetSourceObject(s.ctx, bt.ID, "uploads/x/f.csv"))

	got, err := s.feedback.FindTag(s.ctx, bt.UserID, "f")
	s.Require().NoError(err)
	s.Equal("uploads/x/f.csv", got.SourceObject)
}

func TestPredicateValidate(t *testing.T) {
	require.NoError(t, Where(ColumnDate, OpLt, time.Now()).validate())
	assert.Error(t, Predicate{Column: "x", Op: OpEq}.validate())
	assert.Error(t, Predicate{Column: ColumnDate, Op: "!="}.validate())
}
