package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"feed-ai-go/internal/config"
	"feed-ai-go/internal/model"
	"feed-ai-go/internal/repository"
	"feed-ai-go/pkg/cache"
	"feed-ai-go/pkg/hash"
	"feed-ai-go/pkg/log"
	"feed-ai-go/pkg/token"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const blacklistPrefix = "blacklist:"

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Create(ctx context.Context, in CreateUserInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (string, *model.User, error)
	Logout(ctx context.Context, rawToken string) error
	IsRevoked(ctx context.Context, rawToken string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	Get(ctx context.Context, rawID string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	ListPublic(ctx context.Context) ([]model.PublicUser, error)
	Update(ctx context.Context, actor *token.UserClaims, rawID string, in UpdateUserInput) (*model.User, error)
	Delete(ctx context.Context, rawID string) error
	EnsureSeedAdmin(ctx context.Context, cfg config.AdminConfig) (*model.User, bool, error)
}

// CreateUserInput 是公开注册时可提交的字段，注册用户不能自行成为管理员。
type CreateUserInput struct {
	Name        string
	Username    string
	Email       string
	Password    string
	CPF         string
	CNPJ        string
	CompanyName string
	CompanyType string
}

// UpdateUserInput 是部分更新请求，nil 字段保持不变。
type UpdateUserInput struct {
	Name        *string `json:"name"`
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	Password    *string `json:"password"`
	CPF         *string `json:"cpf"`
	CNPJ        *string `json:"cnpj"`
	CompanyName *string `json:"company_name"`
	CompanyType *string `json:"company_type"`
	IsAdmin     *bool   `json:"is_admin"`
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
	blacklist  cache.Store
	adminEmail string
}

// NewUserService 创建一个新的 UserService 实例。
// adminEmail 是不可修改、不可删除的种子管理员邮箱。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager, blacklist cache.Store, adminEmail string) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		blacklist:  blacklist,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
	}
}

// hashPassword 对密码做 bcrypt 哈希，bcrypt 只接受 72 字节以内的密码。
func hashPassword(password string) (string, error) {
	hashed, err := hash.HashPassword(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", BadRequest(MsgPasswordTooLong)
	}
	if err != nil {
		return "", Internal(err)
	}
	return hashed, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create 处理用户注册的业务逻辑。
func (s *userService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	hashedPassword, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:        strings.TrimSpace(in.Name),
		Username:    strings.TrimSpace(in.Username),
		Email:       normalizeEmail(in.Email),
		Password:    hashedPassword,
		CPF:         strings.TrimSpace(in.CPF),
		CNPJ:        strings.TrimSpace(in.CNPJ),
		CompanyName: in.CompanyName,
		CompanyType: in.CompanyType,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, translateStorageError(err, MsgUserNotFound)
	}
	return user, nil
}

// Login 校验邮箱与密码并签发 access token。
// 邮箱不存在与密码错误返回同一个错误，避免暴露账号是否存在。
func (s *userService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, Unauthorized(MsgInvalidCredentials)
		}
		return "", nil, Internal(err)
	}
	if !hash.CheckPasswordHash(password, user.Password) {
		return "", nil, Unauthorized(MsgInvalidCredentials)
	}

	accessToken, err := s.jwtManager.GenerateToken(subjectOf(user))
	if err != nil {
		return "", nil, Internal(err)
	}
	return accessToken, user, nil
}

func subjectOf(u *model.User) token.Subject {
	return token.Subject{
		ID:          u.ID.String(),
		Username:    u.Username,
		Name:        u.Name,
		Email:       u.Email,
		CPF:         u.CPF,
		CNPJ:        u.CNPJ,
		CompanyName: u.CompanyName,
		CompanyType: u.CompanyType,
		IsAdmin:     u.IsAdmin,
	}
}

// Logout 将 token 加入黑名单，token 的剩余有效期作为黑名单条目的过期时间。
func (s *userService) Logout(ctx context.Context, rawToken string) error {
	raw := token.StripBearer(rawToken)
	claims, err := s.jwtManager.VerifyToken(raw)
	if err != nil {
		return newError(http.StatusUnauthorized, "Invalid token", err)
	}
	expiration := time.Until(claims.ExpiresAt.Time)
	if expiration <= 0 {
		return nil
	}
	if err := s.blacklist.Set(ctx, blacklistPrefix+raw, []byte("true"), expiration); err != nil {
		return Internal(fmt.Errorf("blacklist token: %w", err))
	}
	return nil
}

// IsRevoked 判断 token 是否已登出。
func (s *userService) IsRevoked(ctx context.Context, rawToken string) (bool, error) {
	_, ok, err := s.blacklist.Get(ctx, blacklistPrefix+token.StripBearer(rawToken))
	return ok, err
}

// GetByID 根据 ID 获取用户，供认证中间件加载当前用户。
func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, translateStorageError(err, MsgUserNotFound)
	}
	return user, nil
}

func parseUserID(rawID string) (uuid.UUID, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, BadRequest(MsgInvalidUserID)
	}
	return id, nil
}

// Get 根据字符串形式的 ID 获取用户。
func (s *userService) Get(ctx context.Context, rawID string) (*model.User, error) {
	id, err := parseUserID(rawID)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// List 返回所有用户的完整信息（不含密码）。
func (s *userService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, Internal(err)
	}
	return users, nil
}

// ListPublic 返回所有用户的公开信息。
func (s *userService) ListPublic(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.userRepo.FindAllPublic(ctx)
	if err != nil {
		return nil, Internal(err)
	}
	return users, nil
}

func (s *userService) isSeedAdmin(u *model.User) bool {
	return s.adminEmail != "" && strings.EqualFold(u.Email, s.adminEmail)
}

// Update 将非空字段逐个应用到已加载的用户上，然后一次性保存。
// 只有本人或管理员可以修改，只有管理员可以修改 is_admin，种子管理员不可修改。
func (s *userService) Update(ctx context.Context, actor *token.UserClaims, rawID string, in UpdateUserInput) (*model.User, error) {
	id, err := parseUserID(rawID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, Unauthorized("Not authenticated")
	}
	if actor.ID != id.String() && !actor.IsAdmin {
		return nil, Forbidden(MsgForbiddenUser)
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, translateStorageError(err, MsgUserNotFound)
	}
	if s.isSeedAdmin(user) {
		return nil, Forbidden(MsgAdminImmutable)
	}
	if in.IsAdmin != nil && !actor.IsAdmin {
		return nil, Forbidden(MsgAdminRequired)
	}

	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Username != nil {
		user.Username = strings.TrimSpace(*in.Username)
	}
	if in.Email != nil {
		user.Email = normalizeEmail(*in.Email)
	}
	if in.CPF != nil {
		user.CPF = strings.TrimSpace(*in.CPF)
	}
	if in.CNPJ != nil {
		user.CNPJ = strings.TrimSpace(*in.CNPJ)
	}
	if in.CompanyName != nil {
		user.CompanyName = *in.CompanyName
	}
	if in.CompanyType != nil {
		user.CompanyType = *in.CompanyType
	}
	if in.IsAdmin != nil {
		user.IsAdmin = *in.IsAdmin
	}
	if in.Password != nil {
		hashed, err := hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hashed
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, translateStorageError(err, MsgUserNotFound)
	}
	log.Infof("[UserService] user %s updated by %s", user.ID, actor.ID)
	return user, nil
}

// Delete 删除用户及其全部批次。种子管理员不可删除。
func (s *userService) Delete(ctx context.Context, rawID string) error {
	id, err := parseUserID(rawID)
	if err != nil {
		return err
	}
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return translateStorageError(err, MsgUserNotFound)
	}
	if s.isSeedAdmin(user) {
		return Forbidden(MsgAdminImmutable)
	}
	if err := s.userRepo.DeleteWithBatches(ctx, user); err != nil {
		return translateStorageError(err, MsgUserNotFound)
	}
	log.Infof("[UserService] user %s deleted", user.ID)
	return nil
}

// EnsureSeedAdmin 在种子管理员不存在时创建它，返回的 bool 表示是否新建。
func (s *userService) EnsureSeedAdmin(ctx context.Context, cfg config.AdminConfig) (*model.User, bool, error) {
	if cfg.Password == "" {
		return nil, false, errors.New("admin password is not configured (FEEDAI_ADMIN_PASSWORD)")
	}
	existing, err := s.userRepo.FindByEmail(ctx, normalizeEmail(cfg.Email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("lookup seed admin: %w", err)
	}

	hashed, err := hash.HashPassword(cfg.Password)
	if err != nil {
		return nil, false, err
	}
	admin := &model.User{
		Name:        cfg.Name,
		Username:    cfg.Username,
		Email:       normalizeEmail(cfg.Email),
		Password:    hashed,
		CPF:         cfg.CPF,
		CNPJ:        cfg.CNPJ,
		CompanyName: cfg.CompanyName,
		CompanyType: cfg.CompanyType,
		IsAdmin:     true,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return nil, false, fmt.Errorf("create seed admin: %w", err)
	}
	log.Infof("[UserService] seed admin %s created", admin.Email)
	return admin, true, nil
}
