package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 对应 users 表，存储账号凭证与企业资料。
type User struct {
	ID          uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Username    string    `gorm:"type:varchar(255);not null;index" json:"username"`
	Email       string    `gorm:"type:varchar(255);not null;uniqueIndex:uniq_users_email" json:"email"`
	Password    string    `gorm:"type:varchar(255);not null" json:"-"`
	CPF         string    `gorm:"column:cpf;type:varchar(32);not null;uniqueIndex:uniq_users_cpf" json:"cpf"`
	CNPJ        string    `gorm:"column:cnpj;type:varchar(32);index" json:"cnpj"`
	CompanyName string    `gorm:"type:varchar(255)" json:"company_name"`
	CompanyType string    `gorm:"type:varchar(255)" json:"company_type"`
	IsAdmin     bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate 在插入前生成 UUID 主键。
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// PublicUser 是对所有已登录用户可见的精简视图。
type PublicUser struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Username string    `json:"username"`
}
