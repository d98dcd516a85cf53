package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"feed-ai-go/internal/config"
	"feed-ai-go/internal/model"
	"feed-ai-go/internal/pipeline"
	"feed-ai-go/internal/repository"
	"feed-ai-go/pkg/cache"
	"feed-ai-go/pkg/database"
	"feed-ai-go/pkg/events"
	"feed-ai-go/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testAdminEmail = "admin@admin.com"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, &model.User{}, &model.FeedbackResult{}, &model.BatchTag{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// keywordClassifier 根据关键词给出标签，便于断言。
type keywordClassifier struct{}

func (keywordClassifier) Predict(text string) string {
	switch {
	case strings.Contains(text, "bom"):
		return model.SentimentPositive
	case strings.Contains(text, "ruim"):
		return model.SentimentNegative
	}
	return model.SentimentNeutral
}

func newTestProcessor() *pipeline.Processor {
	return pipeline.NewProcessor(pipeline.NewCleaner(nil), keywordClassifier{})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.BatchEvent
	err    error
}

func (p *recordingPublisher) PublishBatchEvent(_ context.Context, evt events.BatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type memoryArchiver struct {
	objects map[string][]byte
	removed []string
	fail    bool
}

func (a *memoryArchiver) Archive(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	if a.fail {
		return errors.New("storage down")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[name] = b
	return nil
}

func (a *memoryArchiver) Remove(_ context.Context, name string) error {
	a.removed = append(a.removed, name)
	delete(a.objects, name)
	return nil
}

func requireStatus(t *testing.T, err error, status int) *Error {
	t.Helper()
	require.Error(t, err)
	var se *Error
	require.True(t, errors.As(err, &se), "expected *service.Error, got %T: %v", err, err)
	require.Equal(t, status, se.Status, se.Message)
	return se
}

func TestTranslateStorageError(t *testing.T) {
	assert.NoError(t, translateStorageError(nil, "x"))

	se := requireStatus(t, translateStorageError(gorm.ErrRecordNotFound, MsgUserNotFound), http.StatusNotFound)
	assert.Equal(t, MsgUserNotFound, se.Message)

	se = requireStatus(t, translateStorageError(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), ""), http.StatusBadRequest)
	assert.Equal(t, "Email already registered. Choose another one.", se.Message)

	se = requireStatus(t, translateStorageError(errors.New("UNIQUE constraint failed: ai_response_tags.key"), ""), http.StatusBadRequest)
	assert.Equal(t, MsgDuplicateTag, se.Message)

	se = requireStatus(t, translateStorageError(errors.New("disk I/O error"), ""), http.StatusInternalServerError)
	assert.Equal(t, MsgInternal, se.Message)

	already := BadRequest("x")
	assert.Same(t, already, translateStorageError(already, ""))
}

func TestFieldFromIndex(t *testing.T) {
	assert.Equal(t, "cpf", fieldFromIndex("Duplicate entry '1' for key 'users.uniq_users_cpf'"))
	assert.Equal(t, "email", fieldFromIndex("Duplicate entry 'a@x.com' for key 'uniq_users_email'"))
	assert.Equal(t, "related_key", fieldFromIndex("Duplicate entry 'k' for key 'ai_response_tags.uniq_tags_related_key'"))
	assert.Equal(t, "", fieldFromIndex("something else"))
}

// ---- user service ----

func newTestUserService(t *testing.T) (UserService, *token.JWTManager, *gorm.DB) {
	db := newTestDB(t)
	jwtManager := token.NewJWTManager("test-secret", 1)
	svc := NewUserService(repository.NewUserRepository(db), jwtManager, cache.NewMemoryStore(time.Minute, time.Minute), testAdminEmail)
	return svc, jwtManager, db
}

func sampleUser(email, cpf string) CreateUserInput {
	return CreateUserInput{
		Name: "Maria", Username: "maria", Email: email, Password: "s3cret",
		CPF: cpf, CNPJ: "74599023000109", CompanyName: "Loja", CompanyType: "varejo",
	}
}

func seedAdmin(t *testing.T, svc UserService) *model.User {
	admin, created, err := svc.EnsureSeedAdmin(context.Background(), config.AdminConfig{
		Email: testAdminEmail, Password: "admin-pass", Name: "admin", Username: "admin", CPF: "00000000000",
	})
	require.NoError(t, err)
	require.True(t, created)
	return admin
}

func claimsFor(u *model.User) *token.UserClaims {
	return &token.UserClaims{ID: u.ID.String(), Email: u.Email, IsAdmin: u.IsAdmin}
}

func countUsers(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&model.User{}).Count(&n).Error)
	return n
}

func TestUserService_CreateRejectsDuplicates(t *testing.T) {
	svc, _, db := newTestUserService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, sampleUser("Maria@Example.com ", "123"))
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", u.Email)
	assert.NotEqual(t, "s3cret", u.Password)

	_, err = svc.Create(ctx, sampleUser("maria@example.com", "456"))
	se := requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "Email already registered. Choose another one.", se.Message)

	_, err = svc.Create(ctx, sampleUser("other@example.com", "123"))
	se = requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "Cpf already registered. Choose another one.", se.Message)

	// 同一公司可以有多个用户
	_, err = svc.Create(ctx, sampleUser("third@example.com", "789"))
	require.NoError(t, err)

	assert.EqualValues(t, 2, countUsers(t, db))
}

func TestUserService_PasswordOver72BytesIsRejected(t *testing.T) {
	svc, _, db := newTestUserService(t)
	ctx := context.Background()
	long := strings.Repeat("p", 80)

	in := sampleUser("maria@example.com", "1")
	in.Password = long
	_, err := svc.Create(ctx, in)
	se := requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, MsgPasswordTooLong, se.Message)
	assert.Zero(t, countUsers(t, db))

	u, err := svc.Create(ctx, sampleUser("maria@example.com", "1"))
	require.NoError(t, err)
	_, err = svc.Update(ctx, claimsFor(u), u.ID.String(), UpdateUserInput{Password: &long})
	se = requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, MsgPasswordTooLong, se.Message)

	_, _, err = svc.Login(ctx, "maria@example.com", "s3cret")
	require.NoError(t, err, "the stored password is unchanged")
}

func TestUserService_LoginIssuesClaimSnapshot(t *testing.T) {
	svc, jwtManager, _ := newTestUserService(t)
	ctx := context.Background()
	u, err := svc.Create(ctx, sampleUser("maria@example.com", "123"))
	require.NoError(t, err)

	raw, got, err := svc.Login(ctx, "maria@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	claims, err := jwtManager.VerifyToken(raw)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.ID)
	assert.Equal(t, "maria", claims.Username)
	assert.Equal(t, "Maria", claims.Name)
	assert.Equal(t, "123", claims.CPF)
	assert.Equal(t, "74599023000109", claims.CNPJ)
	assert.Equal(t, "Loja", claims.CompanyName)
	assert.Equal(t, "varejo", claims.CompanyType)
	assert.False(t, claims.IsAdmin)
}

func TestUserService_LoginFailuresLookTheSame(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, sampleUser("maria@example.com", "123"))
	require.NoError(t, err)

	_, _, wrongPass := svc.Login(ctx, "maria@example.com", "nope")
	_, _, unknown := svc.Login(ctx, "ghost@example.com", "s3cret")

	a := requireStatus(t, wrongPass, http.StatusUnauthorized)
	b := requireStatus(t, unknown, http.StatusUnauthorized)
	assert.Equal(t, MsgInvalidCredentials, a.Message)
	assert.Equal(t, a.Message, b.Message)
}

func TestUserService_Update(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()
	admin := seedAdmin(t, svc)
	maria, err := svc.Create(ctx, sampleUser("maria@example.com", "1"))
	require.NoError(t, err)
	joao, err := svc.Create(ctx, sampleUser("joao@example.com", "2"))
	require.NoError(t, err)

	name := "Maria Silva"
	updated, err := svc.Update(ctx, claimsFor(maria), maria.ID.String(), UpdateUserInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", updated.Name)
	assert.Equal(t, "maria@example.com", updated.Email, "untouched fields keep their values")

	_, err = svc.Update(ctx, claimsFor(maria), "not-a-uuid", UpdateUserInput{Name: &name})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = svc.Update(ctx, claimsFor(maria), joao.ID.String(), UpdateUserInput{Name: &name})
	requireStatus(t, err, http.StatusForbidden)

	yes := true
	_, err = svc.Update(ctx, claimsFor(maria), maria.ID.String(), UpdateUserInput{IsAdmin: &yes})
	se := requireStatus(t, err, http.StatusForbidden)
	assert.Equal(t, MsgAdminRequired, se.Message)

	promoted, err := svc.Update(ctx, claimsFor(admin), joao.ID.String(), UpdateUserInput{IsAdmin: &yes})
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin)

	taken := "joao@example.com"
	_, err = svc.Update(ctx, claimsFor(maria), maria.ID.String(), UpdateUserInput{Email: &taken})
	se = requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "Email already registered. Choose another one.", se.Message)

	newPass := "changed"
	_, err = svc.Update(ctx, claimsFor(maria), maria.ID.String(), UpdateUserInput{Password: &newPass})
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "maria@example.com", "changed")
	require.NoError(t, err)

	_, err = svc.Update(ctx, claimsFor(admin), "6f1c1a47-3c3f-4a43-9d1e-5c0f8a2b9e11", UpdateUserInput{Name: &name})
	requireStatus(t, err, http.StatusNotFound)
}

func TestUserService_SeedAdminIsImmutable(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()
	admin := seedAdmin(t, svc)

	name := "hacked"
	_, err := svc.Update(ctx, claimsFor(admin), admin.ID.String(), UpdateUserInput{Name: &name})
	se := requireStatus(t, err, http.StatusForbidden)
	assert.Equal(t, MsgAdminImmutable, se.Message)

	se = requireStatus(t, svc.Delete(ctx, admin.ID.String()), http.StatusForbidden)
	assert.Equal(t, MsgAdminImmutable, se.Message)

	again, created, err := svc.EnsureSeedAdmin(ctx, config.AdminConfig{Email: testAdminEmail, Password: "other"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)
}

func TestUserService_EnsureSeedAdminRequiresPassword(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	_, _, err := svc.EnsureSeedAdmin(context.Background(), config.AdminConfig{Email: testAdminEmail})
	assert.Error(t, err)
}

func TestUserService_DeleteCascadesBatches(t *testing.T) {
	svc, _, db := newTestUserService(t)
	ctx := context.Background()
	maria, err := svc.Create(ctx, sampleUser("maria@example.com", "1"))
	require.NoError(t, err)

	feedback := NewFeedbackService(repository.NewFeedbackRepository(db, 0), newTestProcessor(), nil, nil, config.IngestConfig{})
	_, err = feedback.IngestFile(ctx, maria.ID.String(), "lote.csv", []byte("Text\nbom\nruim\n"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, maria.ID.String()))

	var results, tags int64
	require.NoError(t, db.Model(&model.FeedbackResult{}).Count(&results).Error)
	require.NoError(t, db.Model(&model.BatchTag{}).Count(&tags).Error)
	assert.Zero(t, results)
	assert.Zero(t, tags)

	requireStatus(t, svc.Delete(ctx, maria.ID.String()), http.StatusNotFound)
	requireStatus(t, svc.Delete(ctx, "bad"), http.StatusBadRequest)
}

func TestUserService_LogoutRevokesToken(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, sampleUser("maria@example.com", "1"))
	require.NoError(t, err)
	raw, _, err := svc.Login(ctx, "maria@example.com", "s3cret")
	require.NoError(t, err)

	revoked, err := svc.IsRevoked(ctx, raw)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.Logout(ctx, "Bearer "+raw))

	revoked, err = svc.IsRevoked(ctx, raw)
	require.NoError(t, err)
	assert.True(t, revoked)

	requireStatus(t, svc.Logout(ctx, "garbage"), http.StatusUnauthorized)
}

func TestUserService_ListPublic(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()
	u, err := svc.Create(ctx, sampleUser("maria@example.com", "1"))
	require.NoError(t, err)

	pub, err := svc.ListPublic(ctx)
	require.NoError(t, err)
	require.Len(t, pub, 1)
	assert.Equal(t, model.PublicUser{ID: u.ID, Name: "Maria", Username: "maria"}, pub[0])

	got, err := svc.Get(ctx, u.ID.String())
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
}
