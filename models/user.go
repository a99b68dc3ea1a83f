package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/utils"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	OwnerId   string    `gorm:"index" json:"owner_id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:100" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Password  string    `gorm:"size:255;not null" json:"password"`
	Role      string    `gorm:"size:100;not null;default:''" json:"role"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	OwnerId  string `json:"owner_id"`
	Username string `json:"username" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type LoginInfo struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	OwnerId   string `json:"owner_id"`
	OwnerName string `json:"owner_name"`
	Email     string `json:"email"`
}

func (result *User) PrepareGive() {
	result.Password = ""
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	var result LoginInfo

	user := User{}
	err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error
	if err != nil {
		return &result, errors.New("invalid username or password")
	}

	// any compare failure rejects, including a malformed stored hash
	err = utils.ComparePassword(user.Password, password)
	if err != nil {
		return &result, errors.New("invalid username or password")
	}

	if user.IsActive != nil && !*user.IsActive {
		return &result, errors.New("user is disabled")
	}

	token, err := utils.JwtGenerate(user.ID, user.Role, user.OwnerId)
	if err != nil {
		return &result, err
	}

	result.Token = token
	result.Name = user.Name
	result.Role = user.Role
	result.OwnerId = user.OwnerId
	result.Email = user.Email

	owner, err := GetOwnerById(ctx, user.OwnerId)
	if err == nil {
		result.OwnerName = owner.Name
	}

	// session lookup key for the middleware; same lifespan as the JWT
	if err := config.SetRedisValue("Token:"+token, user.Username, 24*time.Hour); err != nil {
		return &result, err
	}

	return &result, nil
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, nil
	}
	return true, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	db := config.GetDB()
	var count int64

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}

	err := db.WithContext(ctx).Model(&User{}).Where("username = ?", input.Username).Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("duplicate username")
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		OwnerId:  input.OwnerId,
		Username: input.Username,
		Name:     input.Name,
		Email:    strings.ToLower(input.Email),
		Phone:    input.Phone,
		Password: string(hashedPassword),
		Role:     input.Role,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

func GetAllUsers(ctx context.Context, ownerId string) ([]*User, error) {

	db := config.GetDB()
	var results []*User

	if err := db.WithContext(ctx).Where("owner_id = ?", ownerId).Find(&results).Error; err != nil {
		return results, errors.New("no user")
	}

	for i, u := range results {
		u.Password = ""
		results[i] = u
	}

	return results, nil
}
